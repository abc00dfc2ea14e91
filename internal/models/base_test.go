package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBase_GenID(t *testing.T) {
	b := NewBase()
	assert.False(t, b.ID.IsZero())

	first := b.ID
	b.GenID()
	assert.False(t, b.ID.IsZero())
	assert.NotEqual(t, first, b.ID)

	var c Cart
	assert.True(t, c.ID.IsZero())
	c.GenID()
	assert.False(t, c.ID.IsZero())
}
