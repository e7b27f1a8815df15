// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review is a terminal UI for resolving ambiguous mappings. Each
// pending source field lists its accepted destination and the competing
// ones; accepting a destination records it as a manual mapping.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/internal/rewrite"
	"github.com/pdiddy/template-converter/pkg/types"
)

// Store is the part of the mapping store the review needs.
type Store interface {
	Ambiguous(ctx context.Context) ([]types.FieldMapping, error)
	Observe(ctx context.Context, obs mappingstore.Observation) (types.FieldMapping, error)
}

// Option is one destination a field can be resolved to.
type Option struct {
	Destination string
	TimesSeen   int
}

type item struct {
	mapping  types.FieldMapping
	options  []Option
	choice   int
	resolved bool
}

func newItem(m types.FieldMapping) item {
	opts := []Option{{Destination: m.DestinationField, TimesSeen: m.TimesSeen}}
	if amb, ok := m.Resolution().(types.Ambiguous); ok {
		for _, a := range amb.Alternatives {
			opts = append(opts, Option{Destination: a.DestinationField, TimesSeen: a.TimesSeen})
		}
	}
	return item{mapping: m, options: opts}
}

func (it item) selected() Option {
	return it.options[it.choice]
}

type loadedMsg struct {
	mappings []types.FieldMapping
}

type errMsg struct {
	err error
}

type acceptedMsg struct {
	index   int
	mapping types.FieldMapping
}

type copiedMsg struct {
	tag string
}

// Model is the bubbletea model for the review screen.
type Model struct {
	ctx   context.Context
	store Store
	keys  KeyMap
	help  help.Model

	// copy writes to the system clipboard; tests replace it.
	copy func(string) error

	items    []item
	cursor   int
	loaded   bool
	accepted int

	width      int
	height     int
	message    string
	messageErr bool
}

// NewModel returns a review model over store.
func NewModel(ctx context.Context, store Store) *Model {
	return &Model{
		ctx:   ctx,
		store: store,
		keys:  DefaultKeys,
		help:  help.New(),
		copy:  clipboard.WriteAll,
	}
}

// Init loads the pending mappings.
func (m *Model) Init() tea.Cmd {
	return m.load
}

// load fetches ambiguous mappings that have not been resolved by hand.
func (m *Model) load() tea.Msg {
	all, err := m.store.Ambiguous(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	var pending []types.FieldMapping
	for _, fm := range all {
		if fm.Source != types.SourceManual {
			pending = append(pending, fm)
		}
	}
	return loadedMsg{pending}
}

// Update handles messages for the review screen.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		m.items = make([]item, 0, len(msg.mappings))
		for _, fm := range msg.mappings {
			m.items = append(m.items, newItem(fm))
		}
		m.loaded = true
		m.cursor = 0
		if len(m.items) == 0 {
			m.setMessage("No ambiguous mappings.", false)
		}
		return m, nil

	case errMsg:
		m.setMessage(msg.err.Error(), true)
		return m, nil

	case acceptedMsg:
		it := &m.items[msg.index]
		if !it.resolved {
			m.accepted++
		}
		it.resolved = true
		it.mapping = msg.mapping
		m.setMessage(fmt.Sprintf("accepted: %s -> %s", msg.mapping.SourceField, msg.mapping.DestinationField), false)
		m.advance()
		return m, nil

	case copiedMsg:
		m.setMessage("copied "+msg.tag, false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if len(m.items) == 0 {
		return m, nil
	}

	it := &m.items[m.cursor]
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Prev):
		it.choice = (it.choice + len(it.options) - 1) % len(it.options)
	case key.Matches(msg, m.keys.Next):
		it.choice = (it.choice + 1) % len(it.options)
	case key.Matches(msg, m.keys.Accept):
		return m, m.accept(m.cursor, it.mapping.SourceField, it.selected().Destination)
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyTag(rewrite.Tag(it.selected().Destination))
	}
	return m, nil
}

func (m *Model) accept(index int, source, destination string) tea.Cmd {
	return func() tea.Msg {
		fm, err := m.store.Observe(m.ctx, mappingstore.Observation{
			Source:      source,
			Destination: destination,
			Kind:        types.SourceManual,
		})
		if err != nil {
			return errMsg{fmt.Errorf("accepting %s: %w", source, err)}
		}
		return acceptedMsg{index: index, mapping: fm}
	}
}

func (m *Model) copyTag(tag string) tea.Cmd {
	return func() tea.Msg {
		if err := m.copy(tag); err != nil {
			return errMsg{fmt.Errorf("copying to clipboard: %w", err)}
		}
		return copiedMsg{tag}
	}
}

// advance moves the cursor to the next unresolved item, wrapping around.
func (m *Model) advance() {
	for i := 1; i <= len(m.items); i++ {
		next := (m.cursor + i) % len(m.items)
		if !m.items[next].resolved {
			m.cursor = next
			return
		}
	}
}

func (m *Model) setMessage(s string, isErr bool) {
	m.message = s
	m.messageErr = isErr
}

// View renders the review screen.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Review ambiguous mappings"))
	b.WriteString("\n")

	if !m.loaded {
		b.WriteString(mutedStyle.Render("Loading..."))
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "%s\n\n", subtitleStyle.Render(fmt.Sprintf("%d pending, %d accepted", m.Pending(), m.accepted)))
		for i, it := range m.items {
			b.WriteString(m.renderItem(i, it))
		}
	}

	if m.message != "" {
		b.WriteString("\n")
		if m.messageErr {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(successStyle.Render(m.message))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return appStyle.Render(b.String())
}

func (m *Model) renderItem(i int, it item) string {
	var b strings.Builder
	line := it.mapping.SourceField
	if it.resolved {
		line += " ✓ " + it.mapping.DestinationField
	}
	switch {
	case i == m.cursor:
		b.WriteString(selectedStyle.Render("> " + line))
	case it.resolved:
		b.WriteString(resolvedStyle.Render("  " + line))
	default:
		b.WriteString(fieldStyle.Render("  " + line))
	}
	b.WriteString("\n")

	if i != m.cursor {
		return b.String()
	}
	for j, opt := range it.options {
		label := fmt.Sprintf("%s (seen %d)", rewrite.Tag(opt.Destination), opt.TimesSeen)
		if j == it.choice {
			b.WriteString("    " + choiceStyle.Render("● "+label))
		} else {
			b.WriteString("    " + mutedStyle.Render("○ "+label))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Accepted returns the number of fields resolved in this session.
func (m *Model) Accepted() int {
	return m.accepted
}

// Pending returns the number of fields still unresolved.
func (m *Model) Pending() int {
	n := 0
	for _, it := range m.items {
		if !it.resolved {
			n++
		}
	}
	return n
}

// Summary counts the outcome of a review session.
type Summary struct {
	Accepted int
	Pending  int
}

// Total returns the number of fields shown.
func (s Summary) Total() int {
	return s.Accepted + s.Pending
}

// Run starts the review program and blocks until the user quits.
func Run(ctx context.Context, store Store, opts ...tea.ProgramOption) (Summary, error) {
	opts = append(opts, tea.WithContext(ctx))
	final, err := tea.NewProgram(NewModel(ctx, store), opts...).Run()
	if err != nil {
		return Summary{}, fmt.Errorf("running review: %w", err)
	}
	m := final.(*Model)
	return Summary{Accepted: m.Accepted(), Pending: m.Pending()}, nil
}
