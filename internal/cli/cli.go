// Package cli implements the bookworm subcommands on top of an *app.App.
package cli

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/chzyer/readline"

	"bookworm/internal/app"
	"bookworm/internal/common/errors"
	"bookworm/internal/domain/book"
	"bookworm/internal/domain/user"
	publish "bookworm/internal/features/book"
	"bookworm/internal/features/feed"
	"bookworm/internal/tui"
)

var (
	ErrNotLoggedIn = stderrors.New("not logged in, run 'bookworm login' first")
	ErrCancelled   = stderrors.New("cancelled")
)

const usage = `Usage: bookworm <command> [flags]

Commands:
  register   create an account and log in
  login      log in with email and password
  logout     forget the saved session
  whoami     show the logged-in account
  profile    your recommendations, with delete (-plain prints instead of the interactive screen)
  feed       browse recommendations (-plain prints instead of the interactive screen)
  post       share a book (-title -caption -rating -image)
  delete     delete one of your books by id
`

// FeedRunner shows the interactive feed. Tests replace it.
type FeedRunner func(ctx context.Context, loader *feed.Loader, viewer string) error

// ProfileRunner shows the interactive profile.
type ProfileRunner func(ctx context.Context, loader *feed.Loader, id user.Identity) error

type CLI struct {
	app         *app.App
	out         io.Writer
	newPrompter func() (Prompter, error)
	prompter    Prompter
	runFeed     FeedRunner
	runProfile  ProfileRunner
}

type Option func(*CLI)

func WithPrompter(p Prompter) Option {
	return func(c *CLI) { c.newPrompter = func() (Prompter, error) { return p, nil } }
}

func WithFeedRunner(r FeedRunner) Option {
	return func(c *CLI) { c.runFeed = r }
}

func WithProfileRunner(r ProfileRunner) Option {
	return func(c *CLI) { c.runProfile = r }
}

func New(a *app.App, out io.Writer, opts ...Option) *CLI {
	c := &CLI{
		app:         a,
		out:         out,
		newPrompter: NewReadlinePrompter,
		runFeed: func(ctx context.Context, loader *feed.Loader, viewer string) error {
			return tui.Run(ctx, loader, viewer, tea.WithAltScreen(), tea.WithContext(ctx))
		},
		runProfile: func(ctx context.Context, loader *feed.Loader, id user.Identity) error {
			return tui.RunProfile(ctx, loader, id, tea.WithAltScreen(), tea.WithContext(ctx))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute restores the saved session and then runs one subcommand.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	defer c.closePrompter()

	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return nil
	}

	// Nothing is decided before the saved session has been read.
	c.app.Session.Restore(ctx)

	name, rest := args[0], args[1:]
	switch name {
	case "register":
		return c.register(ctx, rest)
	case "login":
		return c.login(ctx, rest)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami()
	case "profile":
		return c.profile(ctx, rest)
	case "feed":
		return c.feed(ctx, rest)
	case "post":
		return c.post(ctx, rest)
	case "delete":
		return c.delete(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		fmt.Fprint(c.out, usage)
		return fmt.Errorf("unknown command %q", name)
	}
}

func (c *CLI) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *CLI) prompt() (Prompter, error) {
	if c.prompter == nil {
		p, err := c.newPrompter()
		if err != nil {
			return nil, fmt.Errorf("open prompt: %w", err)
		}
		c.prompter = p
	}
	return c.prompter, nil
}

func (c *CLI) closePrompter() {
	if c.prompter != nil {
		_ = c.prompter.Close()
		c.prompter = nil
	}
}

// ask fills *dst from the prompt when it is empty.
func (c *CLI) ask(dst *string, label string, secret bool) error {
	if *dst != "" {
		return nil
	}
	p, err := c.prompt()
	if err != nil {
		return err
	}
	var v string
	if secret {
		v, err = p.Password(label + ": ")
	} else {
		v, err = p.Line(label + ": ")
	}
	if stderrors.Is(err, readline.ErrInterrupt) || stderrors.Is(err, io.EOF) {
		return ErrCancelled
	}
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func (c *CLI) requireAuth() error {
	if !c.app.Session.Snapshot().Authenticated() {
		return ErrNotLoggedIn
	}
	return nil
}

func (c *CLI) register(ctx context.Context, args []string) error {
	fs := c.flags("register")
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, q := range []struct {
		dst    *string
		label  string
		secret bool
	}{
		{username, "Username", false},
		{email, "Email", false},
		{password, "Password", true},
	} {
		if err := c.ask(q.dst, q.label, q.secret); err != nil {
			return err
		}
	}

	res := c.app.Session.Register(ctx, *username, *email, *password)
	if !res.Success {
		return fmt.Errorf("registration failed: %s", res.Error)
	}
	fmt.Fprintf(c.out, "Welcome, %s!\n", c.app.Session.Snapshot().Identity.Username)
	return nil
}

func (c *CLI) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.ask(email, "Email", false); err != nil {
		return err
	}
	if err := c.ask(password, "Password", true); err != nil {
		return err
	}

	res := c.app.Session.Login(ctx, *email, *password)
	if !res.Success {
		return fmt.Errorf("login failed: %s", res.Error)
	}
	fmt.Fprintf(c.out, "Logged in as %s\n", c.app.Session.Snapshot().Identity.Username)
	return nil
}

func (c *CLI) logout(ctx context.Context) error {
	if err := c.app.Session.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %s", errors.UserMessage(err))
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func (c *CLI) whoami() error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	id := c.app.Session.Snapshot().Identity
	fmt.Fprintf(c.out, "%s <%s>\n", id.Username, id.Email)
	if since := id.MemberSince(); since != "" {
		fmt.Fprintf(c.out, "Joined %s\n", since)
	}
	if id.ProfileImage != "" {
		fmt.Fprintf(c.out, "Avatar %s\n", id.ProfileImage)
	}
	return nil
}

func (c *CLI) feed(ctx context.Context, args []string) error {
	fs := c.flags("feed")
	plain := fs.Bool("plain", false, "print every page instead of the interactive screen")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireAuth(); err != nil {
		return err
	}

	loader := c.app.NewFeed()
	if !*plain {
		return c.runFeed(ctx, loader, c.app.Session.Snapshot().Identity.ID)
	}

	if err := loader.LoadAll(ctx); err != nil {
		return fmt.Errorf("load feed: %s", errors.UserMessage(err))
	}

	items := loader.Snapshot().Items
	if len(items) == 0 {
		fmt.Fprintln(c.out, "No recommendations yet.")
		return nil
	}
	for _, b := range items {
		printBook(c.out, b)
	}
	return nil
}

func (c *CLI) profile(ctx context.Context, args []string) error {
	fs := c.flags("profile")
	plain := fs.Bool("plain", false, "print your books instead of the interactive screen")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireAuth(); err != nil {
		return err
	}

	id := *c.app.Session.Snapshot().Identity
	loader := c.app.NewFeed()
	if !*plain {
		return c.runProfile(ctx, loader, id)
	}

	if err := loader.LoadAll(ctx); err != nil {
		return fmt.Errorf("load profile: %s", errors.UserMessage(err))
	}
	mine := feed.OwnedBy(loader.Snapshot().Items, id.ID)

	fmt.Fprintf(c.out, "%s <%s>\n", id.Username, id.Email)
	if since := id.MemberSince(); since != "" {
		fmt.Fprintf(c.out, "Joined %s\n", since)
	}
	fmt.Fprintf(c.out, "\nYour Recommendations (%d)\n", len(mine))
	if len(mine) == 0 {
		fmt.Fprintln(c.out, "You haven't shared any books yet.")
		return nil
	}
	for _, b := range mine {
		printBook(c.out, b)
	}
	return nil
}

func printBook(w io.Writer, b book.Book) {
	fmt.Fprintf(w, "%s  %s  by %s\n", b.Title, b.Stars(), b.Owner.Username)
	if b.Caption != "" {
		fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(b.Caption, "\n", " "))
	}
	fmt.Fprintf(w, "    id %s, shared %s\n", b.ID, b.CreatedAt.Format("2006-01-02"))
}

func (c *CLI) post(ctx context.Context, args []string) error {
	fs := c.flags("post")
	title := fs.String("title", "", "book title")
	caption := fs.String("caption", "", "why you recommend it")
	rating := fs.Int("rating", 0, "rating from 1 to 5")
	image := fs.String("image", "", "path to the cover image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireAuth(); err != nil {
		return err
	}
	if err := c.ask(title, "Title", false); err != nil {
		return err
	}
	if err := c.ask(caption, "Caption", false); err != nil {
		return err
	}
	if err := c.ask(image, "Cover image path", false); err != nil {
		return err
	}

	dataURL, err := publish.ReadImage(*image)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	res := c.app.Publisher.Publish(ctx, book.Draft{
		Title:   *title,
		Caption: *caption,
		Image:   dataURL,
		Rating:  *rating,
	})
	if !res.Success {
		return fmt.Errorf("post failed: %s", res.Error)
	}
	fmt.Fprintf(c.out, "Shared %q (id %s)\n", res.Book.Title, res.Book.ID)
	return nil
}

func (c *CLI) delete(ctx context.Context, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("usage: bookworm delete <id>")
	}
	if err := c.requireAuth(); err != nil {
		return err
	}
	if err := c.app.NewFeed().Remove(ctx, args[0]); err != nil {
		return fmt.Errorf("delete failed: %s", errors.UserMessage(err))
	}
	fmt.Fprintln(c.out, "Book deleted")
	return nil
}
