package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/reelx/internal/fetch"
	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	SearchView
)

type focusArea int

const (
	focusInput focusArea = iota
	focusResults
)

const (
	emptyQueryText = "Type a movie name to search..."
	sideBySideMin  = 100
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	session  *session.Session
	search   *fetch.Controller[models.Movie]
	trending *fetch.Controller[models.Movie]
	open     func(url string) error

	state         session.State
	searchState   fetch.State[models.Movie]
	trendingState fetch.State[models.Movie]

	width   int
	height  int
	focus   focusArea
	input   textinput.Model
	spinner spinner.Model
	results list.Model
	status  string
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model. The session check must already be running; the model waits for
// it before showing the search view.
func NewModel(ctx context.Context, sess *session.Session, search, trending *fetch.Controller[models.Movie]) *Model {
	input := textinput.New()
	input.Placeholder = emptyQueryText
	input.Prompt = "Search: "
	input.CharLimit = 100
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	results := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	results.Title = "Results"
	results.SetFilteringEnabled(false)
	results.SetShowHelp(false)
	results.SetShowStatusBar(false)

	return &Model{
		ctx:      ctx,
		view:     LoadingView,
		session:  sess,
		search:   search,
		trending: trending,
		open:     shared.OpenBrowser,
		input:    input,
		spinner:  spin,
		results:  results,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init waits for the session and starts listening to both controllers.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		m.waitForSession(),
		m.waitForSearch(),
		m.waitForTrending(),
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.view == LoadingView {
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		if m.focus == focusInput {
			return m.handleInputKeys(msg)
		}
		return m.handleResultKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSessionReady:
		data := msg.data.(sessionReady)
		m.view = SearchView
		m.state = data.state
		if data.err != nil {
			m.err = data.err
		}
		return m, nil

	case MsgSearchState:
		data := msg.data.(controllerState)
		if !data.ok {
			return m, nil
		}
		prev := m.searchState
		m.searchState = data.state
		cmd := m.results.SetItems(movieItems(data.state.Items))
		if prev.Query != data.state.Query || prev.Page != data.state.Page {
			m.results.ResetSelected()
		}
		return m, tea.Batch(cmd, m.waitForSearch())

	case MsgTrendingState:
		data := msg.data.(controllerState)
		if !data.ok {
			return m, nil
		}
		m.trendingState = data.state
		return m, m.waitForTrending()

	case MsgBrowserOpened:
		data := msg.data.(browserOpened)
		if data.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Could not open browser: %v", data.err))
		} else {
			m.status = styles.help.Render("Opened " + data.url)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.focus):
		m.setFocus(focusResults)
		return m, nil
	case key.Matches(msg, m.keys.submit):
		if err := m.search.Submit(m.input.Value()); err != nil && !errors.Is(err, shared.ErrNoQuery) {
			m.status = styles.err.Render(err.Error())
		}
		if strings.TrimSpace(m.input.Value()) != "" {
			m.setFocus(focusResults)
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.status = ""
		m.search.SetQuery(m.input.Value())
	}
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.focus):
		m.setFocus(focusInput)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.next):
		m.page(m.search.NextPage())
		return m, nil
	case key.Matches(msg, m.keys.prev):
		m.page(m.search.PrevPage())
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.page(m.search.Reload())
		return m, nil
	case key.Matches(msg, m.keys.trending):
		return m, m.toggleTrending()
	case key.Matches(msg, m.keys.open):
		if item, ok := m.results.SelectedItem().(movieItem); ok {
			return m, m.openMovie(item.movie)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

// page reports paging errors in the status line. Running past either end is silent.
func (m *Model) page(err error) {
	switch {
	case err == nil, errors.Is(err, shared.ErrPageOutOfRange):
		m.status = ""
	case errors.Is(err, shared.ErrNoQuery):
		m.status = styles.help.Render(emptyQueryText)
	default:
		m.status = styles.err.Render(err.Error())
	}
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) toggleTrending() tea.Cmd {
	if m.trending == nil {
		return nil
	}
	window := "week"
	if m.trendingState.Query == "week" {
		window = "day"
	}
	if err := m.trending.Submit(window); err != nil {
		m.status = styles.err.Render(err.Error())
	}
	return nil
}

func (m *Model) resize() {
	width := m.width - 4
	if m.width >= sideBySideMin {
		width = m.width*2/3 - 4
	}
	m.results.SetSize(width, max(m.height-10, 5))
	m.input.Width = width - len(m.input.Prompt)
	m.help.Width = m.width
}

func (m *Model) waitForSession() tea.Cmd {
	return func() tea.Msg {
		state, err := m.session.Wait(m.ctx)
		return sessionReadyMsg(state, err)
	}
}

func (m *Model) waitForSearch() tea.Cmd {
	return func() tea.Msg {
		state, ok := <-m.search.Updates()
		return searchStateMsg(state, ok)
	}
}

func (m *Model) waitForTrending() tea.Cmd {
	if m.trending == nil {
		return nil
	}
	return func() tea.Msg {
		state, ok := <-m.trending.Updates()
		return trendingStateMsg(state, ok)
	}
}

func (m *Model) openMovie(movie models.Movie) tea.Cmd {
	url := movie.PageURL()
	return func() tea.Msg {
		return browserOpenedMsg(url, m.open(url))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.view == LoadingView {
		return fmt.Sprintf("\n %s Checking session...\n", m.spinner.View())
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("reelx"))
	b.WriteString("\n")
	b.WriteString(m.renderSession())
	b.WriteString("\n\n")

	main := lipgloss.JoinVertical(lipgloss.Left, m.input.View(), "", m.renderResults())
	if m.trending != nil {
		panel := styles.panel.Render(m.renderTrending())
		if m.width >= sideBySideMin {
			main = lipgloss.JoinHorizontal(lipgloss.Top, main, "  ", panel)
		} else {
			main = lipgloss.JoinVertical(lipgloss.Left, main, "", panel)
		}
	}
	b.WriteString(main)

	if m.status != "" {
		b.WriteString("\n\n" + m.status)
	}
	b.WriteString("\n\n" + m.renderHelp())
	return b.String()
}

func (m *Model) renderSession() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Session check failed: %v", m.err))
	}
	if !m.state.Authenticated {
		return styles.warn.Render("Not signed in. Run `reelx auth login` to sign in.")
	}
	if m.state.User != nil {
		return styles.ok.Render("Signed in as " + m.state.User.DisplayName())
	}
	return styles.ok.Render("Signed in")
}

func (m *Model) renderResults() string {
	s := m.searchState
	switch {
	case s.Query == "":
		return styles.help.Render(emptyQueryText)
	case s.Status == fetch.Error:
		return styles.err.Render("Error: " + s.Err)
	case s.Status == fetch.Loading, s.Status == fetch.Idle:
		return fmt.Sprintf("%s Searching for %q...", m.spinner.View(), s.Query)
	case len(s.Items) == 0:
		return fmt.Sprintf("No movies found for \"%s\".", s.Query)
	}
	return fmt.Sprintf("%s\n%s", m.results.View(),
		styles.help.Render(formatter.PageSummary(s.Page, s.TotalPages, s.TotalCount)))
}

func (m *Model) renderTrending() string {
	s := m.trendingState
	title := "Trending today"
	if s.Query == "week" {
		title = "Trending this week"
	}

	var b strings.Builder
	b.WriteString(NewBold("#7D56F4").Render(title))
	b.WriteString("\n\n")

	switch {
	case s.Status == fetch.Error:
		b.WriteString(styles.err.Render("Error: " + s.Err))
	case s.Status != fetch.Success:
		b.WriteString(m.spinner.View() + " Loading...")
	case len(s.Items) == 0:
		b.WriteString("Nothing trending right now.")
	default:
		for i, movie := range s.Items {
			rating := styles.rating(movie, fmt.Sprintf("★ %.1f", movie.VoteAverage))
			fmt.Fprintf(&b, "%2d. %s (%s) %s\n", i+1, movie.Title, movie.Year(), rating)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderHelp() string {
	if m.focus == focusInput {
		return m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.focus, m.keys.quit})
	}
	return m.help.ShortHelpView([]key.Binding{
		m.keys.up, m.keys.down, m.keys.open, m.keys.next, m.keys.prev,
		m.keys.trending, m.keys.focus, m.keys.quit,
	})
}
