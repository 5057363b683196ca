package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	SetCost(bcrypt.MinCost)
	m.Run()
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("Secret123")
	require.NoError(t, err)

	assert.True(t, IsHash(hash))
	assert.NotContains(t, hash, "Secret123")
	assert.True(t, Verify(hash, "Secret123"))
	assert.False(t, Verify(hash, "secret123"))
	assert.False(t, Verify(hash, ""))
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("Secret123")
	require.NoError(t, err)
	b, err := Hash("Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := Hash("")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestVerifyRejectsPlaintextStoredValue(t *testing.T) {
	assert.False(t, Verify("Secret123", "Secret123"))
	assert.False(t, IsHash("admin123"))
}

func TestSetCostClamps(t *testing.T) {
	prev := SetCost(1)
	defer SetCost(prev)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestDummyHashFollowsCost(t *testing.T) {
	c, err := bcrypt.Cost(dummyHash())
	require.NoError(t, err)
	assert.Equal(t, cost, c)

	prev := SetCost(bcrypt.MinCost + 1)
	defer SetCost(prev)
	c, err = bcrypt.Cost(dummyHash())
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, c)

	VerifyNone("Secret123")
}
