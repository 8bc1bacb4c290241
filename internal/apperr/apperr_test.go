package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := E(Conflict, "a proposal to this member is already active")
	wrapped := fmt.Errorf("send: %w", err)

	assert.Equal(t, Conflict, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, Conflict))
	assert.False(t, IsKind(wrapped, NotFound))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{Forbidden, http.StatusForbidden},
		{Conflict, http.StatusConflict},
		{InvalidState, http.StatusConflict},
		{Validation, http.StatusBadRequest},
		{TransientGateway, http.StatusBadGateway},
		{SignatureInvalid, http.StatusBadRequest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(E(tt.kind, "x")), string(tt.kind))
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(TransientGateway, cause, "gateway unreachable")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, TransientGateway, KindOf(err))
	assert.Contains(t, err.Error(), "gateway unreachable")
}
