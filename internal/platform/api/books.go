package api

import (
	"context"

	apperrors "bookworm/internal/common/errors"
	"bookworm/internal/domain/book"
)

// CredentialSource yields the bearer token of the current session, or "" when logged out.
type CredentialSource interface {
	Credential() string
}

// Books binds the client to the session so callers need not pass the token around.
type Books struct {
	client *Client
	tokens CredentialSource
}

func NewBooks(client *Client, tokens CredentialSource) *Books {
	return &Books{client: client, tokens: tokens}
}

func (b *Books) token() (string, error) {
	t := b.tokens.Credential()
	if t == "" {
		return "", apperrors.NewUnauthorizedError("not logged in")
	}
	return t, nil
}

func (b *Books) ListBooks(ctx context.Context, page, limit int) (*book.Page, error) {
	t, err := b.token()
	if err != nil {
		return nil, err
	}
	return b.client.ListBooks(ctx, t, page, limit)
}

func (b *Books) CreateBook(ctx context.Context, d book.Draft) (*book.Book, error) {
	t, err := b.token()
	if err != nil {
		return nil, err
	}
	return b.client.CreateBook(ctx, t, d)
}

func (b *Books) DeleteBook(ctx context.Context, id string) error {
	t, err := b.token()
	if err != nil {
		return err
	}
	return b.client.DeleteBook(ctx, t, id)
}
