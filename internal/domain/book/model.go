package book

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("book not found")

// Owner is the summary of the user who shared a book.
type Owner struct {
	ID           string `json:"_id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImages,omitempty"`
}

// Book is a single shared recommendation. ID is the identity key.
type Book struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Caption   string    `json:"caption"`
	Image     string    `json:"image"`
	Rating    int       `json:"rating"`
	Owner     Owner     `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stars renders the rating as five filled or empty stars.
func (b Book) Stars() string {
	r := b.Rating
	if r < 0 {
		r = 0
	}
	if r > 5 {
		r = 5
	}
	return strings.Repeat("★", r) + strings.Repeat("☆", 5-r)
}

// Page is one page of the listing endpoint.
type Page struct {
	Books       []Book `json:"books"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	TotalBooks  int    `json:"totalBooks,omitempty"`
}

// Draft is what the client submits when sharing a book.
// Image is a data URL; Rating is sent as a decimal string.
type Draft struct {
	Title   string
	Caption string
	Image   string
	Rating  int
}

// Repository is the dev API's book store.
type Repository interface {
	Create(ctx context.Context, b *Book) error
	List(ctx context.Context, page, limit int) (*Page, error)
	GetByID(ctx context.Context, id string) (*Book, error)
	Delete(ctx context.Context, id string) error
}
