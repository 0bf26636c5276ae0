package syncerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"no internet", NewNoInternet(), true},
		{"timeout", NewTimeout(), true},
		{"server error 500", NewServerError(500, ""), true},
		{"server error 599", NewServerError(599, ""), true},
		{"server error 400", NewServerError(400, ""), false},
		{"server error 499", NewServerError(499, ""), false},
		{"server error 600", NewServerError(600, ""), false},
		{"serialization", NewSerialization(errors.New("bad json")), false},
		{"unknown", NewUnknown(errors.New("boom")), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewUnknown(cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "server error 500: boom", NewServerError(500, "boom").Error())
	assert.Equal(t, "server error 500", NewServerError(500, "").Error())
	assert.Equal(t, "NoInternet", NewNoInternet().Error())
}
