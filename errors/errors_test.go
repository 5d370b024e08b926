package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf("error: %s %d", "test", 42)
	require.NotNil(t, err)
	assert.Equal(t, "error: test 42", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
}

func TestIsThroughLayers(t *testing.T) {
	sentinel := New("sentinel")
	layered := Wrap(Wrapf(sentinel, "layer %d", 1), "layer 2")

	assert.True(t, Is(layered, sentinel))
	assert.False(t, Is(layered, New("other")))
}

func TestUnwrap(t *testing.T) {
	inner := fmt.Errorf("inner")
	outer := Wrap(inner, "outer")

	assert.True(t, Is(outer, inner))
	assert.NotNil(t, Unwrap(outer))
}
