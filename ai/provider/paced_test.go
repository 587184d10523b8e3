package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaced_Disabled(t *testing.T) {
	m := NewMock()
	assert.Same(t, m, NewPaced(m, 0))
}

func TestPaced_FirstCallImmediateSecondWaits(t *testing.T) {
	m := NewMock()
	gen := NewPaced(m, 60) // one per second

	_, err := gen.Generate(context.Background(), "s", "u")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = gen.Generate(ctx, "s", "u")
	assert.Error(t, err, "second call inside the same second should not fit the deadline")
	assert.Equal(t, 1, m.Calls())
}
