// Package tui renders the book feed and the profile as terminal screens.
package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bookworm/internal/common/errors"
	"bookworm/internal/domain/book"
	"bookworm/internal/domain/user"
	"bookworm/internal/features/feed"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	ownerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	starStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 2)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("238")).Padding(0, 2)
)

// linesPerItem is how many rows one book takes in the list.
const linesPerItem = 3

// stateMsg carries a loader notification into the event loop.
type stateMsg feed.State

type opDoneMsg struct {
	op  string
	err error
}

// Model is the feed screen, or the profile screen when profile is set.
// viewer is the logged-in user's id; only their own books can be deleted.
type Model struct {
	ctx     context.Context
	loader  *feed.Loader
	viewer  string
	profile *user.Identity

	state  feed.State
	cursor int
	status string
	err    string
	width  int
	height int
}

func New(ctx context.Context, loader *feed.Loader, viewer string) Model {
	return Model{ctx: ctx, loader: loader, viewer: viewer, state: loader.Snapshot()}
}

// NewProfile lists only the books id has shared. Every page is loaded so the count is complete.
func NewProfile(ctx context.Context, loader *feed.Loader, id user.Identity) Model {
	m := New(ctx, loader, id.ID)
	m.profile = &id
	return m
}

func (m Model) Init() tea.Cmd {
	return m.run("load", m.loader.LoadInitial)
}

// run executes a loader operation off the event loop.
func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

// visible is the list the cursor moves over.
func (m Model) visible() []book.Book {
	if m.profile != nil {
		return feed.OwnedBy(m.state.Items, m.viewer)
	}
	return m.state.Items
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case stateMsg:
		if msg.Version < m.state.Version {
			return m, nil
		}
		m.state = feed.State(msg)
		m.clampCursor()
		return m, nil

	case opDoneMsg:
		m.state = m.loader.Snapshot()
		m.clampCursor()
		switch {
		case msg.err == nil:
			m.err = ""
			if msg.op == "delete" {
				m.status = "Book deleted"
			}
		case stderrors.Is(msg.err, feed.ErrSuperseded):
		case stderrors.Is(msg.err, feed.ErrDeleteInFlight):
			m.status = "Already deleting that book"
		default:
			m.err = errors.UserMessage(msg.err)
		}
		// The profile keeps paging until it has every book.
		if m.profile != nil && msg.op != "delete" && msg.err == nil && m.state.HasMore {
			return m, m.run("more", m.loader.LoadMore)
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.visible()
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
		if m.profile == nil && m.cursor >= len(items)-1 && m.state.HasMore {
			return m, m.run("more", m.loader.LoadMore)
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "g", "home":
		m.cursor = 0
	case "r":
		m.status = ""
		m.err = ""
		m.cursor = 0
		return m, m.run("refresh", m.loader.Refresh)
	case "d":
		if len(items) == 0 {
			return m, nil
		}
		b := items[m.cursor]
		if b.Owner.ID != m.viewer {
			m.status = "You can only delete your own books"
			return m, nil
		}
		m.status = "Deleting " + b.Title + "..."
		id := b.ID
		return m, m.run("delete", func(ctx context.Context) error { return m.loader.Remove(ctx, id) })
	}
	return m, nil
}

func (m *Model) clampCursor() {
	if n := len(m.visible()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	var sb strings.Builder
	items := m.visible()

	if m.profile != nil {
		sb.WriteString(m.profileHeader(len(items)))
	} else {
		sb.WriteString(titleStyle.Render("Bookworm") + "  " + ownerStyle.Render("Recommendations from the community") + "\n\n")
	}

	switch {
	case len(items) == 0 && m.state.Phase != feed.Idle:
		sb.WriteString("Loading...\n")
	case len(items) == 0 && m.profile != nil:
		sb.WriteString(ownerStyle.Render("You haven't shared any books yet.") + "\n")
	case len(items) == 0:
		sb.WriteString(ownerStyle.Render("No recommendations yet. Press r to refresh.") + "\n")
	default:
		from, to := m.window(len(items))
		for i := from; i < to; i++ {
			sb.WriteString(m.renderItem(items[i], i == m.cursor))
		}
		switch {
		case m.state.IsLoadingMore():
			sb.WriteString(ownerStyle.Render("  loading more...") + "\n")
		case !m.state.HasMore && m.profile == nil:
			sb.WriteString(ownerStyle.Render("  that's everything") + "\n")
		}
	}

	sb.WriteString("\n")
	if m.err != "" {
		sb.WriteString(errorStyle.Render(m.err) + "\n")
	}
	if m.status != "" {
		sb.WriteString(statusStyle.Render(m.status) + "\n")
	}
	sb.WriteString(footerStyle.Render(fmt.Sprintf("%s | %d loaded | j/k move  r refresh  d delete  q quit",
		m.state.Phase, len(items))))
	return sb.String()
}

func (m Model) profileHeader(count int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.profile.Username) + "  " + ownerStyle.Render(m.profile.Email) + "\n")
	if since := m.profile.MemberSince(); since != "" {
		sb.WriteString(ownerStyle.Render("Joined "+since) + "\n")
	}
	noun := "recommendations"
	if count == 1 {
		noun = "recommendation"
	}
	sb.WriteString(fmt.Sprintf("\nYour Recommendations  %d %s\n\n", count, noun))
	return sb.String()
}

func (m Model) renderItem(b book.Book, selected bool) string {
	marker, title := "  ", titleStyle.Render(b.Title)
	if selected {
		marker, title = "▸ ", selectedStyle.Render(b.Title)
	}
	line := marker + title + "  " + starStyle.Render(b.Stars()) + "  " + ownerStyle.Render("by "+b.Owner.Username)
	if m.state.IsDeleting(b.ID) {
		line += errorStyle.Render("  deleting")
	}
	caption := b.Caption
	if runes := []rune(caption); m.width > 8 && len(runes) > m.width-7 {
		caption = string(runes[:m.width-7]) + "..."
	}
	return line + "\n    " + caption + "\n\n"
}

// window picks the slice of n items that fits on screen around the cursor.
func (m Model) window(n int) (int, int) {
	if m.height <= 0 {
		return 0, n
	}
	fit := (m.height - 6) / linesPerItem
	if fit < 1 {
		fit = 1
	}
	if n <= fit {
		return 0, n
	}
	from := m.cursor - fit/2
	if from < 0 {
		from = 0
	}
	if from+fit > n {
		from = n - fit
	}
	return from, from + fit
}

// Run shows the feed until the user quits. Loader notifications re-render the screen.
func Run(ctx context.Context, loader *feed.Loader, viewer string, opts ...tea.ProgramOption) error {
	return runProgram(New(ctx, loader, viewer), loader, opts...)
}

// RunProfile shows id's own books until the user quits.
func RunProfile(ctx context.Context, loader *feed.Loader, id user.Identity, opts ...tea.ProgramOption) error {
	return runProgram(NewProfile(ctx, loader, id), loader, opts...)
}

func runProgram(m Model, loader *feed.Loader, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(m, opts...)
	unsubscribe := loader.Subscribe(func(st feed.State) { p.Send(stateMsg(st)) })
	defer unsubscribe()

	_, err := p.Run()
	return err
}
