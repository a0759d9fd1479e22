// Package feed pages through the book listing and keeps a de-duplicated list of items.
package feed

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"bookworm/internal/common/event"
	"bookworm/internal/domain/book"
)

const DefaultPageSize = 5

var (
	// ErrSuperseded is returned by a load whose response arrived after a newer load started.
	// The response is dropped and state is left to the newer load.
	ErrSuperseded = errors.New("feed: response superseded by a newer load")
	// ErrDeleteInFlight is returned by Remove while a delete for the same id is pending.
	ErrDeleteInFlight = errors.New("feed: delete already in flight")
)

type Phase int

const (
	Idle Phase = iota
	LoadingInitial
	LoadingMore
	Refreshing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case LoadingInitial:
		return "loading"
	case LoadingMore:
		return "loading-more"
	case Refreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Source is the listing and delete half of the API.
type Source interface {
	ListBooks(ctx context.Context, page, limit int) (*book.Page, error)
	DeleteBook(ctx context.Context, id string) error
}

// State is a copy of the loader's state. Phase is a single value, so at most
// one of the loading flags is ever true. Version grows with every change; a
// snapshot with a lower Version than one already seen is out of date.
type State struct {
	Items       []book.Book
	CurrentPage int
	HasMore     bool
	Phase       Phase
	Deleting    []string
	Version     uint64
}

func (s State) IsLoadingInitial() bool { return s.Phase == LoadingInitial }
func (s State) IsLoadingMore() bool    { return s.Phase == LoadingMore }
func (s State) IsRefreshing() bool     { return s.Phase == Refreshing }

func (s State) IsDeleting(id string) bool {
	for _, d := range s.Deleting {
		if d == id {
			return true
		}
	}
	return false
}

type Loader struct {
	src      Source
	pageSize int
	log      zerolog.Logger
	bus      *event.Bus[State]

	mu          sync.Mutex
	items       []book.Book
	ids         map[string]struct{}
	currentPage int
	hasMore     bool
	phase       Phase
	seq         uint64
	version     uint64
	deleting    map[string]struct{}
}

func NewLoader(src Source, pageSize int, log zerolog.Logger) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	log = log.With().Str("component", "feed").Logger()
	return &Loader{
		src:      src,
		pageSize: pageSize,
		log:      log,
		bus:      event.NewBus[State](log),
		ids:      make(map[string]struct{}),
		hasMore:  true,
		deleting: make(map[string]struct{}),
	}
}

func (l *Loader) PageSize() int { return l.pageSize }

func (l *Loader) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Loader) snapshotLocked() State {
	st := State{
		Items:       append([]book.Book(nil), l.items...),
		CurrentPage: l.currentPage,
		HasMore:     l.hasMore,
		Phase:       l.phase,
		Version:     l.version,
	}
	for id := range l.deleting {
		st.Deleting = append(st.Deleting, id)
	}
	sort.Strings(st.Deleting)
	return st
}

// Subscribe calls fn with a fresh snapshot after every state change. Changes made
// on different goroutines may be delivered out of order; compare Version.
func (l *Loader) Subscribe(fn func(State)) func() {
	return l.bus.Subscribe(fn)
}

// unlockAndPublish releases the lock taken by the caller and notifies subscribers.
func (l *Loader) unlockAndPublish() {
	l.version++
	snap := l.snapshotLocked()
	l.mu.Unlock()
	l.bus.Publish(snap)
}

// begin moves to phase p and returns the sequence number of the new load.
// Caller holds the lock.
func (l *Loader) begin(p Phase) uint64 {
	l.phase = p
	l.seq++
	return l.seq
}

// LoadInitial fetches page 1 and replaces the items. It does nothing unless Idle.
func (l *Loader) LoadInitial(ctx context.Context) error {
	l.mu.Lock()
	if l.phase != Idle {
		l.mu.Unlock()
		return nil
	}
	seq := l.begin(LoadingInitial)
	l.unlockAndPublish()

	page, err := l.src.ListBooks(ctx, 1, l.pageSize)
	return l.finishFirstPage(seq, page, err, "initial load")
}

// Refresh always runs. It clears the list first, so a failed refresh leaves an
// empty list that can still load more.
func (l *Loader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	seq := l.begin(Refreshing)
	l.items = nil
	l.ids = make(map[string]struct{})
	l.currentPage = 0
	l.hasMore = true
	l.unlockAndPublish()

	page, err := l.src.ListBooks(ctx, 1, l.pageSize)
	return l.finishFirstPage(seq, page, err, "refresh")
}

func (l *Loader) finishFirstPage(seq uint64, page *book.Page, err error, op string) error {
	l.mu.Lock()
	if seq != l.seq {
		l.mu.Unlock()
		l.log.Debug().Str("op", op).Uint64("seq", seq).Msg("Dropping stale response")
		return ErrSuperseded
	}
	l.phase = Idle
	if err != nil {
		l.unlockAndPublish()
		l.log.Warn().Err(err).Str("op", op).Msg("Feed load failed")
		return err
	}

	l.items = l.items[:0:0]
	l.ids = make(map[string]struct{}, len(page.Books))
	l.appendLocked(page.Books)
	l.currentPage = 1
	l.hasMore = 1 < page.TotalPages
	n := len(l.items)
	l.unlockAndPublish()

	l.log.Debug().Str("op", op).Int("items", n).Int("total_pages", page.TotalPages).Msg("Feed loaded")
	return nil
}

// LoadMore appends the next page. It does nothing unless Idle with more pages left.
func (l *Loader) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.phase != Idle || !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	seq := l.begin(LoadingMore)
	next := l.currentPage + 1
	l.unlockAndPublish()

	page, err := l.src.ListBooks(ctx, next, l.pageSize)

	l.mu.Lock()
	if seq != l.seq {
		l.mu.Unlock()
		l.log.Debug().Int("page", next).Uint64("seq", seq).Msg("Dropping stale response")
		return ErrSuperseded
	}
	l.phase = Idle
	if err != nil {
		l.unlockAndPublish()
		l.log.Warn().Err(err).Int("page", next).Msg("Loading more failed")
		return err
	}

	added := l.appendLocked(page.Books)
	l.currentPage = next
	l.hasMore = next < page.TotalPages
	l.unlockAndPublish()

	l.log.Debug().Int("page", next).Int("added", added).Int("received", len(page.Books)).Msg("Feed page appended")
	return nil
}

// appendLocked adds books whose id is not yet present, in order.
func (l *Loader) appendLocked(books []book.Book) int {
	added := 0
	for _, b := range books {
		if _, dup := l.ids[b.ID]; dup {
			continue
		}
		l.ids[b.ID] = struct{}{}
		l.items = append(l.items, b)
		added++
	}
	return added
}

// Remove deletes the book on the server and then drops it from the list.
// Only one delete per id is ever in flight.
func (l *Loader) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	if _, busy := l.deleting[id]; busy {
		l.mu.Unlock()
		return ErrDeleteInFlight
	}
	l.deleting[id] = struct{}{}
	l.unlockAndPublish()

	err := l.src.DeleteBook(ctx, id)

	l.mu.Lock()
	delete(l.deleting, id)
	if err == nil {
		l.removeLocked(id)
	}
	l.unlockAndPublish()

	if err != nil {
		l.log.Warn().Err(err).Str("book_id", id).Msg("Delete failed")
		return err
	}
	l.log.Info().Str("book_id", id).Msg("Book deleted")
	return nil
}

func (l *Loader) removeLocked(id string) {
	if _, ok := l.ids[id]; !ok {
		return
	}
	delete(l.ids, id)
	kept := l.items[:0:0]
	for _, b := range l.items {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	l.items = kept
}

// LoadAll loads the first page and then every remaining page. It stops early
// when another load owns the loader.
func (l *Loader) LoadAll(ctx context.Context) error {
	if err := l.LoadInitial(ctx); err != nil {
		return err
	}
	for {
		st := l.Snapshot()
		if !st.HasMore || st.Phase != Idle {
			return nil
		}
		if err := l.LoadMore(ctx); err != nil {
			return err
		}
	}
}

// OwnedBy returns the items posted by ownerID, in list order.
func OwnedBy(items []book.Book, ownerID string) []book.Book {
	var out []book.Book
	for _, b := range items {
		if b.Owner.ID == ownerID {
			out = append(out, b)
		}
	}
	return out
}
