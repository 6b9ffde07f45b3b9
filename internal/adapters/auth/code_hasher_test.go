package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptCodeHasher_Hash_and_Compare(t *testing.T) {
	h := NewBcryptCodeHasher(bcrypt.MinCost)

	hash, err := h.Hash("123456")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "123456", hash)

	require.NoError(t, h.Compare(hash, "123456"))
	assert.Error(t, h.Compare(hash, "654321"))
}

func TestBcryptCodeHasher_SaltsEachHash(t *testing.T) {
	h := NewBcryptCodeHasher(bcrypt.MinCost)
	a, err := h.Hash("000000")
	require.NoError(t, err)
	b, err := h.Hash("000000")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewBcryptCodeHasher_InvalidCostUsesDefault(t *testing.T) {
	h := NewBcryptCodeHasher(0).(*bcryptCodeHasher)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}
