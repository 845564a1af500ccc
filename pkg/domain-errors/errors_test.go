package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, CodeBadGateway, "identity provider unreachable")

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, CodeBadGateway))
	assert.Equal(t, "identity provider unreachable", MessageOf(err))
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestIsWalksNestedCodes(t *testing.T) {
	inner := New(CodeTimeout, "deadline")
	outer := Wrap(fmt.Errorf("exchange: %w", inner), CodeUpstream, "token exchange failed")

	assert.True(t, Is(outer, CodeUpstream))
	assert.True(t, HasCode(outer, CodeTimeout))
	assert.False(t, Is(outer, CodeBadRequest))
	assert.Equal(t, CodeUpstream, CodeOf(outer))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeAccessDenied, http.StatusBadRequest},
		{CodeInvalidClient, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeUpstream, http.StatusInternalServerError},
		{CodeBadGateway, http.StatusBadGateway},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeConfiguration, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.code))
		})
	}
}
