package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"transport", NewTransportError("login", fmt.Errorf("dial tcp: refused")), MsgNetwork},
		{"unauthorized", NewHTTPStatusError("list books", http.StatusUnauthorized, "Token is not valid"), MsgUnauthorized},
		{"bad request without message", NewHTTPStatusError("create book", http.StatusBadRequest, ""), MsgBadRequest},
		{"bad request with message", NewHTTPStatusError("register", http.StatusBadRequest, "Email already exists"), "Email already exists"},
		{"server message", NewHTTPStatusError("delete book", http.StatusForbidden, "Not your book"), "Not your book"},
		{"bare status", NewHTTPStatusError("delete book", http.StatusInternalServerError, ""), MsgUnexpected},
		{"validation", NewValidationError("email", "is required"), "email is required"},
		{"storage", NewStorageError("put", fmt.Errorf("disk full")), MsgStorage},
		{"foreign", fmt.Errorf("plain"), "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	inner := NewStorageError("get", stderrors.New("boom"))
	wrapped := fmt.Errorf("restore: %w", inner)

	got, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)
	assert.Equal(t, ErrCodeStorage, CodeOf(wrapped))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("x")))
	assert.True(t, stderrors.Is(wrapped, &AppError{Code: ErrCodeStorage}))
	assert.False(t, stderrors.Is(wrapped, &AppError{Code: ErrCodeTransport}))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, NewHTTPStatusError("x", http.StatusUnauthorized, "").IsUnauthorized())
	assert.True(t, NewUnauthorizedError("no token").IsUnauthorized())
	assert.True(t, NewHTTPStatusError("x", http.StatusNotFound, "").IsNotFound())
	assert.False(t, NewHTTPStatusError("x", http.StatusTeapot, "").IsNotFound())
	assert.Equal(t, "[TRANSPORT_ERROR] Request failed: login: eof", NewTransportError("login", stderrors.New("eof")).Error())
}
