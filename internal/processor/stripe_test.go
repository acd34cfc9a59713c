package processor

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v76"
)

func TestTranslateStripeErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing session", &stripe.Error{HTTPStatusCode: http.StatusNotFound, Code: stripe.ErrorCodeResourceMissing, Msg: "No such checkout.session"}, ErrSessionNotFound},
		{"malformed id", &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Msg: "Invalid id"}, ErrSessionNotFound},
		{"wrapped", fmt.Errorf("get: %w", &stripe.Error{HTTPStatusCode: http.StatusNotFound}), ErrSessionNotFound},
		{"server error", &stripe.Error{HTTPStatusCode: http.StatusInternalServerError}, ErrUnavailable},
		{"transport", errors.New("dial tcp: connection refused"), ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tt.err), tt.want)
		})
	}
}

func TestSessionCompleted(t *testing.T) {
	assert.True(t, (&Session{Status: StatusComplete}).Completed())
	assert.False(t, (&Session{Status: "open"}).Completed())
	assert.False(t, (&Session{Status: "expired"}).Completed())
}
