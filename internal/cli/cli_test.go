package cli

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bookworm/internal/app"
	"bookworm/internal/common/config"
	"bookworm/internal/devapi"
	"bookworm/internal/domain/user"
	"bookworm/internal/features/feed"
	"bookworm/internal/platform/kv"
)

type scriptedPrompter struct {
	answers []string
	asked   []string
	closed  bool
}

func (s *scriptedPrompter) next(prompt string) (string, error) {
	s.asked = append(s.asked, prompt)
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	v := s.answers[0]
	s.answers = s.answers[1:]
	return v, nil
}

func (s *scriptedPrompter) Line(prompt string) (string, error)     { return s.next(prompt) }
func (s *scriptedPrompter) Password(prompt string) (string, error) { return s.next(prompt) }
func (s *scriptedPrompter) Close() error                           { s.closed = true; return nil }

type harness struct {
	t     *testing.T
	url   string
	store kv.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(devapi.New(devapi.Options{Debug: true, Log: zerolog.Nop(), BcryptCost: bcrypt.MinCost}))
	t.Cleanup(srv.Close)
	return &harness{t: t, url: srv.URL, store: kv.NewMemory()}
}

// run executes one command in a fresh App over the shared store, like a new process would.
func (h *harness) run(args []string, opts ...Option) (string, error) {
	h.t.Helper()
	cfg := &config.Config{}
	cfg.API.BaseURL = h.url
	cfg.API.Timeout = 5 * time.Second
	cfg.Feed.PageSize = 5
	cfg.Storage.Backend = config.StorageMemory

	a := app.NewWithStore(cfg, h.store, zerolog.Nop())
	var out bytes.Buffer
	err := New(a, &out, opts...).Execute(context.Background(), args)
	return out.String(), err
}

func writeCover(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0o600))
	return path
}

func TestUsage(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage: bookworm")

	_, err = h.run([]string{"dance"})
	assert.Error(t, err)
}

func TestCommandsNeedLogin(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{{"whoami"}, {"feed", "-plain"}, {"profile", "-plain"}, {"post", "-title", "x"}, {"delete", "abc"}} {
		_, err := h.run(args)
		assert.ErrorIs(t, err, ErrNotLoggedIn, "%v", args)
	}
}

func TestRegisterPromptsForMissingValues(t *testing.T) {
	h := newHarness(t)
	p := &scriptedPrompter{answers: []string{"ada@example.com", "secret1"}}

	out, err := h.run([]string{"register", "-username", "ada"}, WithPrompter(p))
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, ada!")
	assert.Equal(t, []string{"Email: ", "Password: "}, p.asked)
	assert.True(t, p.closed)

	out, err = h.run([]string{"whoami"})
	require.NoError(t, err)
	assert.Contains(t, out, "ada <ada@example.com>")
	assert.Contains(t, out, "Joined "+time.Now().UTC().Format("January 2006"))
}

func TestPromptCancelled(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{"login"}, WithPrompter(&scriptedPrompter{}))
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestLoginFailureIsReported(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{"login", "-email", "ghost@example.com", "-password", "secret1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestPostFeedDeleteLogout(t *testing.T) {
	h := newHarness(t)
	cover := writeCover(t)

	_, err := h.run([]string{"register", "-username", "ada", "-email", "ada@example.com", "-password", "secret1"})
	require.NoError(t, err)

	var id string
	for _, title := range []string{"Dune", "Emma", "Ulysses", "Beloved", "Hamlet", "Walden", "Ubik"} {
		out, err := h.run([]string{"post", "-title", title, "-caption", "Read it", "-rating", "4", "-image", cover})
		require.NoError(t, err)
		assert.Contains(t, out, "Shared \""+title+"\"")
		if title == "Emma" {
			m := regexp.MustCompile(`id ([0-9a-f-]+)`).FindStringSubmatch(out)
			require.Len(t, m, 2)
			id = m[1]
		}
	}

	_, err = h.run([]string{"post", "-title", "Bad", "-caption", "c", "-rating", "9", "-image", cover})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rating must be between 1 and 5")

	out, err := h.run([]string{"feed", "-plain"})
	require.NoError(t, err)
	for _, title := range []string{"Dune", "Emma", "Ubik"} {
		assert.Contains(t, out, title)
	}
	assert.Less(t, bytes.Index([]byte(out), []byte("Ubik")), bytes.Index([]byte(out), []byte("Dune")))

	out, err = h.run([]string{"delete", id})
	require.NoError(t, err)
	assert.Contains(t, out, "Book deleted")

	_, err = h.run([]string{"delete", id})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Book not found")

	out, err = h.run([]string{"feed", "-plain"})
	require.NoError(t, err)
	assert.NotContains(t, out, "Emma")

	out, err = h.run([]string{"logout"})
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	_, err = h.run([]string{"whoami"})
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestRegisterLeavesFieldRulesToServer(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{"register", "-username", "al", "-email", "al@example.com", "-password", "secret1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username must be between 3 and 32 characters")
}

func TestProfileShowsOnlyOwnBooks(t *testing.T) {
	ada := newHarness(t)
	cover := writeCover(t)
	_, err := ada.run([]string{"register", "-username", "ada", "-email", "ada@example.com", "-password", "secret1"})
	require.NoError(t, err)
	for _, title := range []string{"Dune", "Emma", "Ulysses", "Beloved", "Hamlet", "Walden"} {
		_, err := ada.run([]string{"post", "-title", title, "-caption", "Read it", "-rating", "4", "-image", cover})
		require.NoError(t, err)
	}

	// A second account on the same server, with its own saved session.
	bob := &harness{t: t, url: ada.url, store: kv.NewMemory()}
	_, err = bob.run([]string{"register", "-username", "bob", "-email", "bob@example.com", "-password", "secret1"})
	require.NoError(t, err)
	_, err = bob.run([]string{"post", "-title", "Ubik", "-caption", "Weird", "-rating", "5", "-image", cover})
	require.NoError(t, err)

	out, err := bob.run([]string{"profile", "-plain"})
	require.NoError(t, err)
	assert.Contains(t, out, "bob <bob@example.com>")
	assert.Contains(t, out, "Joined "+time.Now().UTC().Format("January 2006"))
	assert.Contains(t, out, "Your Recommendations (1)")
	assert.Contains(t, out, "Ubik")
	assert.NotContains(t, out, "Dune")

	out, err = ada.run([]string{"profile", "-plain"})
	require.NoError(t, err)
	assert.Contains(t, out, "Your Recommendations (6)")
	assert.Contains(t, out, "Walden")
	assert.Contains(t, out, "Dune")
	assert.NotContains(t, out, "Ubik")
}

func TestProfileEmptyAndInteractive(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{"register", "-username", "ada", "-email", "ada@example.com", "-password", "secret1"})
	require.NoError(t, err)

	out, err := h.run([]string{"profile", "-plain"})
	require.NoError(t, err)
	assert.Contains(t, out, "Your Recommendations (0)")
	assert.Contains(t, out, "You haven't shared any books yet.")

	var got user.Identity
	runner := func(_ context.Context, loader *feed.Loader, id user.Identity) error {
		got = id
		assert.Equal(t, 5, loader.PageSize())
		return nil
	}
	_, err = h.run([]string{"profile"}, WithProfileRunner(runner))
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)
	assert.NotEmpty(t, got.ID)
}

func TestInteractiveFeedGetsViewer(t *testing.T) {
	h := newHarness(t)
	_, err := h.run([]string{"register", "-username", "ada", "-email", "ada@example.com", "-password", "secret1"})
	require.NoError(t, err)

	var viewer string
	runner := func(_ context.Context, loader *feed.Loader, v string) error {
		viewer = v
		assert.Equal(t, 5, loader.PageSize())
		return nil
	}
	_, err = h.run([]string{"feed"}, WithFeedRunner(runner))
	require.NoError(t, err)
	assert.NotEmpty(t, viewer)
}
