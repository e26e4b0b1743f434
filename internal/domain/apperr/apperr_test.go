package apperr

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	sentinel := NotFound("order not found")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error is internal", err: errors.New("boom"), want: KindInternal},
		{name: "sentinel", err: sentinel, want: KindNotFound},
		{name: "wrapped sentinel", err: errors.Wrap(sentinel, "get order"), want: KindNotFound},
		{name: "conflict", err: Conflict("cart is empty"), want: KindConflict},
		{name: "forbidden", err: Forbidden("admin access required"), want: KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_Is(t *testing.T) {
	sentinel := NotFound("product not found")
	wrapped := errors.Wrap(sentinel, "lookup")

	require.ErrorIs(t, wrapped, sentinel)
	assert.NotErrorIs(t, wrapped, NotFound("order not found"))
	assert.NotErrorIs(t, wrapped, Conflict("product not found"))
}

func TestFieldErrors(t *testing.T) {
	f := FieldErrors{}
	f.Require("firstName", "  ", "First name is required")
	f.Require("city", "Paris", "City is required")

	err := f.Err("invalid shipping info")
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, map[string]string{"firstName": "First name is required"}, e.Fields)
	assert.Equal(t, "invalid shipping info: firstName: First name is required", e.Error())

	assert.NoError(t, FieldErrors{}.Err("ok"))
}
