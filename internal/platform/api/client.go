package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "bookworm/internal/common/errors"
	"bookworm/internal/domain/book"
	"bookworm/internal/domain/user"
)

// maxErrorBody caps how much of a failed response is read looking for a message.
const maxErrorBody = 64 << 10

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both auth endpoints.
type AuthResponse struct {
	Token string `json:"token"`
	user.Identity
}

type createBookRequest struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	Image   string `json:"image"`
	Rating  string `json:"rating"`
}

type errorBody struct {
	Message string `json:"message"`
}

// Client talks to the book-recommendation HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout}, log)
}

func NewClientWithHTTP(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log.With().Str("component", "api").Logger(),
	}
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", "", in, &out, successAny); err != nil {
		return nil, err
	}
	if err := checkAuth(&out, "register"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", "", in, &out, successAny); err != nil {
		return nil, err
	}
	if err := checkAuth(&out, "login"); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkAuth(out *AuthResponse, op string) error {
	if out.Token == "" || !out.Identity.Valid() {
		return apperrors.NewDecodeError(op, fmt.Errorf("response is missing token or identity"))
	}
	return nil
}

// ListBooks fetches one page of the feed.
func (c *Client) ListBooks(ctx context.Context, token string, page, limit int) (*book.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out book.Page
	if err := c.do(ctx, "list books", http.MethodGet, "/api/book?"+q.Encode(), token, nil, &out, successOK); err != nil {
		return nil, err
	}
	if out.Books == nil {
		out.Books = []book.Book{}
	}
	return &out, nil
}

func (c *Client) CreateBook(ctx context.Context, token string, d book.Draft) (*book.Book, error) {
	in := createBookRequest{
		Title:   d.Title,
		Caption: d.Caption,
		Image:   d.Image,
		Rating:  strconv.Itoa(d.Rating),
	}
	var out book.Book
	if err := c.do(ctx, "create book", http.MethodPost, "/api/book", token, in, &out, successCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBook(ctx context.Context, token, id string) error {
	return c.do(ctx, "delete book", http.MethodDelete, "/api/book/"+url.PathEscape(id), token, nil, nil, successOK)
}

type acceptFunc func(status int) bool

func successAny(status int) bool     { return status >= 200 && status < 300 }
func successOK(status int) bool      { return status == http.StatusOK }
func successCreated(status int) bool { return status == http.StatusOK || status == http.StatusCreated }

// do performs one JSON round trip. A nil out skips decoding the body.
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out interface{}, accept acceptFunc) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request: "+op)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request: "+op)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("op", op).Msg("Request failed")
		return apperrors.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Request completed")

	if !accept(resp.StatusCode) {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, &eb)
		return apperrors.NewHTTPStatusError(op, resp.StatusCode, eb.Message)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewDecodeError(op, err)
	}
	return nil
}
