package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type registry interface{ Name() string }

type hostRegistry struct{}

func (hostRegistry) Name() string { return "host" }

func TestAvailable(t *testing.T) {
	p := Available[registry](hostRegistry{})

	h, ok := p.Get()
	assert.True(t, ok)
	assert.True(t, p.IsAvailable())
	assert.Equal(t, "host", h.Name())
	assert.Empty(t, p.Reason())
}

func TestUnavailable(t *testing.T) {
	p := Unavailable[registry]("framework not linked")

	h, ok := p.Get()
	assert.False(t, ok)
	assert.Nil(t, h)
	assert.Equal(t, "framework not linked", p.Reason())
}

func TestZeroValueIsUnavailable(t *testing.T) {
	var p Provider[registry]

	assert.False(t, p.IsAvailable())
	assert.Equal(t, "not provided", p.Reason())
	assert.Equal(t, "not provided", Unavailable[registry]("").Reason())
}
