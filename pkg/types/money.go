package types

import "github.com/shopspring/decimal"

// Money values are persisted as float64 and computed in decimal so that sums
// and differences round to cents the way a till does.

// Cents rounds v to two decimal places.
func Cents(v float64) float64 {
	return toFloat(decimal.NewFromFloat(v))
}

// LineTotal returns price × quantity rounded to cents.
func LineTotal(price, quantity float64) float64 {
	return toFloat(decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity)))
}

// SumMoney adds values and rounds the result to cents.
func SumMoney(values ...float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return toFloat(sum)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
