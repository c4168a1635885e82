package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUUIDGenerator(t *testing.T) {
	g := UUIDGenerator{}
	a, b := g.Generate(), g.Generate()

	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("x", "y")

	assert.Equal(t, "x", g.Generate())
	assert.Equal(t, "y", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("req")

	assert.Equal(t, "req-1", g.Generate())
	assert.Equal(t, "req-2", g.Generate())
}
