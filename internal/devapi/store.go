package devapi

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bookworm/internal/domain/book"
	"bookworm/internal/domain/user"
)

// MemoryStore is the dev server's account, token and book storage.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*user.Account // by id
	byEmail  map[string]string        // lowercased email -> id
	tokens   map[string]string        // token -> user id
	books    map[string]*storedBook
	seq      uint64
}

type storedBook struct {
	book.Book
	seq uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*user.Account),
		byEmail:  make(map[string]string),
		tokens:   make(map[string]string),
		books:    make(map[string]*storedBook),
	}
}

var (
	_ user.Repository = (*MemoryStore)(nil)
	_ book.Repository = (*Books)(nil)
)

func (s *MemoryStore) Create(_ context.Context, a *user.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(a.Email)
	if _, ok := s.byEmail[email]; ok {
		return user.ErrEmailTaken
	}
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Username, a.Username) {
			return user.ErrUsernameTaken
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	s.accounts[a.ID] = &cp
	s.byEmail[email] = a.ID
	return nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*user.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*user.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) IssueToken(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; !ok {
		return "", user.ErrNotFound
	}
	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	s.tokens[token] = userID
	return token, nil
}

func (s *MemoryStore) ResolveToken(_ context.Context, token string) (*user.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, user.ErrNotFound
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// Books exposes the book half of the store as a book.Repository.
type Books struct {
	s *MemoryStore
}

func (s *MemoryStore) Books() *Books { return &Books{s: s} }

func (b *Books) Create(_ context.Context, bk *book.Book) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if bk.ID == "" {
		bk.ID = uuid.NewString()
	}
	b.s.seq++
	b.s.books[bk.ID] = &storedBook{Book: *bk, seq: b.s.seq}
	return nil
}

// List returns books newest first. Pages are 1-based; a page past the end is empty.
func (b *Books) List(_ context.Context, page, limit int) (*book.Page, error) {
	b.s.mu.RLock()
	stored := make([]storedBook, 0, len(b.s.books))
	for _, sb := range b.s.books {
		stored = append(stored, *sb)
	}
	b.s.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool { return stored[i].seq > stored[j].seq })
	all := make([]book.Book, len(stored))
	for i, sb := range stored {
		all[i] = sb.Book
	}

	total := len(all)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	out := &book.Page{Books: []book.Book{}, CurrentPage: page, TotalPages: totalPages, TotalBooks: total}
	if start < total {
		end := start + limit
		if end > total {
			end = total
		}
		out.Books = all[start:end]
	}
	return out, nil
}

func (b *Books) GetByID(_ context.Context, id string) (*book.Book, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	sb, ok := b.s.books[id]
	if !ok {
		return nil, book.ErrNotFound
	}
	cp := sb.Book
	return &cp, nil
}

func (b *Books) Delete(_ context.Context, id string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.books[id]; !ok {
		return book.ErrNotFound
	}
	delete(b.s.books, id)
	return nil
}
