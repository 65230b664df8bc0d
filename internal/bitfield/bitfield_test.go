package bitfield

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitfieldSetAndHas(t *testing.T) {
	bf := New(20)
	assert.False(t, bf.Has(0))
	bf.Set(0)
	bf.Set(9)
	bf.Set(19)
	assert.True(t, bf.Has(0))
	assert.True(t, bf.Has(9))
	assert.True(t, bf.Has(19))
	assert.False(t, bf.Has(1))
	assert.False(t, bf.Has(10))
}

func TestBitfieldOutOfRangeIsSafe(t *testing.T) {
	bf := New(4)
	assert.False(t, bf.Has(-1))
	assert.False(t, bf.Has(1000))
	bf.Set(-1)
	bf.Set(1000)
}

func TestBitfieldLength(t *testing.T) {
	assert.Len(t, New(8), 1)
	assert.Len(t, New(9), 2)
	assert.Len(t, New(0), 0)
}
