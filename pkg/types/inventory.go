package types

// InventoryItem is a stocked ingredient or supply. Stock always equals the
// sum of the item's movement deltas.
type InventoryItem struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Stock     int64  `json:"stock"`
	CreatedAt string `json:"created_at"` // TimestampLayout.
}

// InventoryMovement is an immutable stock adjustment record.
type InventoryMovement struct {
	ID        int64  `json:"id"`
	ItemID    int64  `json:"item_id"`
	Delta     int64  `json:"delta"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"` // TimestampLayout.
}

func (i InventoryItem) GetID() int64 { return i.ID }
func (i InventoryItem) WithID(id int64) InventoryItem { i.ID = id; return i }

func (m InventoryMovement) GetID() int64 { return m.ID }
func (m InventoryMovement) WithID(id int64) InventoryMovement { m.ID = id; return m }
