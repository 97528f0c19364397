package types

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectInset(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 30, Height: 40}
	assert.Equal(t, Rect{X: 12, Y: 22, Width: 26, Height: 36}, r.Inset(2))
	assert.Equal(t, Rect{X: 9, Y: 19, Width: 32, Height: 42}, r.Inset(-1))
}

func TestRectIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	assert.Equal(t, Rect{X: 5, Y: 5, Width: 5, Height: 5}, a.Intersect(Rect{X: 5, Y: 5, Width: 20, Height: 20}))
	assert.True(t, a.Intersect(Rect{X: 10, Y: 0, Width: 5, Height: 5}).Empty())
	assert.Equal(t, Rect{}, a.Intersect(Rect{X: -20, Y: -20, Width: 5, Height: 5}))
}

func TestRectImage(t *testing.T) {
	r := Rect{X: 1, Y: 2, Width: 3, Height: 4}
	assert.Equal(t, image.Rect(1, 2, 4, 6), r.Image())
	assert.True(t, r.Contains(1, 2))
	assert.False(t, r.Contains(4, 2))
}

func TestColorInvert(t *testing.T) {
	inv := Grey.Invert()
	assert.Equal(t, Grey.Main, inv.Main)
	assert.Equal(t, Grey.Shadow, inv.Highlight)
	assert.Equal(t, Grey.Highlight, inv.Shadow)
	assert.Equal(t, Grey, inv.Invert())
}

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("broken pipe")
	var err error = &EncodeError{Viewer: "abc", Err: base}
	wrapped := fmt.Errorf("push: %w", err)

	require.ErrorIs(t, wrapped, base)
	var encErr *EncodeError
	require.ErrorAs(t, wrapped, &encErr)
	assert.Equal(t, "abc", encErr.Viewer)

	collab := &CollaboratorError{Backend: "vnc", Err: base}
	assert.Contains(t, collab.Error(), "remote vnc")
	assert.ErrorIs(t, collab, base)
}
