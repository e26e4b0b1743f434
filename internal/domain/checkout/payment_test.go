package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCardNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "4242424242424242", want: "4242 4242 4242 4242"},
		{in: "4242-4242 4242.4242", want: "4242 4242 4242 4242"},
		{in: "42424242424242421234", want: "4242 4242 4242 4242"},
		{in: "424242", want: "4242 42"},
		{in: "abc", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCardNumber(tt.in))
		})
	}
}

func TestNormalizeExpiry(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "0427", want: "04/27"},
		{in: "04/27", want: "04/27"},
		{in: "04 / 2027", want: "04/20"},
		{in: "1", want: "1"},
		{in: "12", want: "12/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeExpiry(tt.in))
		})
	}
}

func TestLuhnValid(t *testing.T) {
	assert.True(t, luhnValid("4242424242424242"))
	assert.True(t, luhnValid("5555555555554444"))
	assert.False(t, luhnValid("4242424242424241"))
	assert.False(t, luhnValid("4242"))
}

func TestExpiryValid(t *testing.T) {
	now := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in             string
		valid, expired bool
	}{
		{in: "04/25", valid: true, expired: false},
		{in: "03/25", valid: true, expired: true},
		{in: "12/30", valid: true, expired: false},
		{in: "13/30", valid: false},
		{in: "00/30", valid: false},
		{in: "1230", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			valid, expired := expiryValid(tt.in, now)
			assert.Equal(t, tt.valid, valid)
			assert.Equal(t, tt.expired, expired)
		})
	}
}
