package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "bookworm/internal/common/errors"
	"bookworm/internal/devapi"
	"bookworm/internal/domain/book"
)

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

func newDevServer(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(devapi.New(devapi.Options{Debug: true, Log: zerolog.Nop(), BcryptCost: bcrypt.MinCost}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second, zerolog.Nop())
}

func newRawServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zerolog.Nop())
}

func TestClientAgainstDevServer(t *testing.T) {
	ctx := context.Background()
	c := newDevServer(t)

	reg, err := c.Register(ctx, RegisterRequest{Username: "ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "ada", reg.Username)
	assert.NotNil(t, reg.CreatedAt)

	login, err := c.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, reg.ID, login.ID)

	created, err := c.CreateBook(ctx, login.Token, book.Draft{Title: "Dune", Caption: "classic", Image: pngDataURL, Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, created.Rating)
	assert.Equal(t, reg.ID, created.Owner.ID)

	page, err := c.ListBooks(ctx, login.Token, 1, 5)
	require.NoError(t, err)
	require.Len(t, page.Books, 1)
	assert.Equal(t, created.ID, page.Books[0].ID)
	assert.Equal(t, 1, page.TotalPages)

	require.NoError(t, c.DeleteBook(ctx, login.Token, created.ID))

	err = c.DeleteBook(ctx, login.Token, created.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeHTTPStatus, appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestClientLoginBadCredentials(t *testing.T) {
	c := newDevServer(t)

	_, err := c.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "Invalid credentials", appErr.Details["server_message"])
}

func TestClientUnauthorized(t *testing.T) {
	c := newDevServer(t)

	_, err := c.ListBooks(context.Background(), "stale-token", 1, 5)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.True(t, appErr.IsUnauthorized())
	assert.Equal(t, apperrors.MsgUnauthorized, apperrors.UserMessage(err))
}

func TestClientSendsBearerAndQuery(t *testing.T) {
	c := newRawServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/book", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"currentPage":3,"totalPages":4}`))
	})

	page, err := c.ListBooks(context.Background(), "tok", 3, 5)
	require.NoError(t, err)
	assert.NotNil(t, page.Books)
	assert.Empty(t, page.Books)
	assert.Equal(t, 4, page.TotalPages)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    apperrors.ErrorCode
		status  int
	}{
		{
			name: "status without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			code:   apperrors.ErrCodeHTTPStatus,
			status: http.StatusInternalServerError,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"books":[`))
			},
			code: apperrors.ErrCodeDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRawServer(t, tt.handler)
			_, err := c.ListBooks(context.Background(), "tok", 1, 5)
			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.Status)
		})
	}
}

func TestClientAuthMissingToken(t *testing.T) {
	c := newRawServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_id":"u1","username":"ada"}`))
	})

	_, err := c.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "x"})
	assert.Equal(t, apperrors.ErrCodeDecode, apperrors.CodeOf(err))
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, zerolog.Nop())
	_, err := c.ListBooks(context.Background(), "tok", 1, 5)
	assert.Equal(t, apperrors.ErrCodeTransport, apperrors.CodeOf(err))
	assert.Equal(t, apperrors.MsgNetwork, apperrors.UserMessage(err))
}

type staticToken string

func (s staticToken) Credential() string { return string(s) }

func TestBooksRequiresCredential(t *testing.T) {
	b := NewBooks(NewClient("http://127.0.0.1:1", time.Second, zerolog.Nop()), staticToken(""))

	_, err := b.ListBooks(context.Background(), 1, 5)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.True(t, appErr.IsUnauthorized())

	assert.Error(t, b.DeleteBook(context.Background(), "id"))
}
