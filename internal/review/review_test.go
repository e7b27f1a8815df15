// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/template-converter/internal/mappingstore"
	"github.com/pdiddy/template-converter/pkg/types"
)

func newStore(t *testing.T) *mappingstore.Store {
	t.Helper()
	s, err := mappingstore.NewStore(types.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func observe(t *testing.T, s *mappingstore.Store, source, dest string, kind types.SourceKind) {
	t.Helper()
	_, err := s.Observe(context.Background(), mappingstore.Observation{Source: source, Destination: dest, Kind: kind})
	require.NoError(t, err)
}

// send delivers msg and then runs any command it produced, feeding the
// result back into the model, until no command remains.
func send(t *testing.T, m *Model, msg tea.Msg) tea.Msg {
	t.Helper()
	var last tea.Msg
	for msg != nil {
		_, cmd := m.Update(msg)
		if cmd == nil {
			return last
		}
		msg = cmd()
		if _, ok := msg.(tea.QuitMsg); ok {
			return msg
		}
		last = msg
	}
	return last
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, s Store) *Model {
	t.Helper()
	m := NewModel(context.Background(), s)
	m.copy = func(string) error { return nil }
	send(t, m, m.Init()())
	require.True(t, m.loaded)
	return m
}

func TestLoad_SkipsManualAndUnambiguous(t *testing.T) {
	s := newStore(t)
	observe(t, s, "=client", "project.client_name", types.SourceLearned)
	observe(t, s, "=client", "customer.name", types.SourceLearned)
	observe(t, s, "=date", "project.date", types.SourceLearned)
	observe(t, s, "=total", "totals.grand", types.SourceLearned)
	observe(t, s, "=total", "totals.net", types.SourceManual)

	m := loaded(t, s)
	require.Len(t, m.items, 1)
	assert.Equal(t, "=client", m.items[0].mapping.SourceField)
	assert.Equal(t, []Option{
		{Destination: "project.client_name", TimesSeen: 1},
		{Destination: "customer.name", TimesSeen: 1},
	}, m.items[0].options)
	assert.Equal(t, 1, m.Pending())
}

func TestAccept_Alternative(t *testing.T) {
	s := newStore(t)
	observe(t, s, "=client", "project.client_name", types.SourceLearned)
	observe(t, s, "=client", "customer.name", types.SourceLearned)

	m := loaded(t, s)
	send(t, m, runes("l"))
	assert.Equal(t, 1, m.items[0].choice)

	msg := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.IsType(t, acceptedMsg{}, msg)
	assert.Equal(t, 1, m.Accepted())
	assert.Equal(t, 0, m.Pending())
	assert.Contains(t, m.message, "accepted: =client -> customer.name")

	got, err := s.Get(context.Background(), "=client")
	require.NoError(t, err)
	assert.Equal(t, "customer.name", got.DestinationField)
	assert.Equal(t, types.SourceManual, got.Source)
	assert.Equal(t, types.MaxScore, got.Score)
}

func TestAccept_AdvancesToNextPending(t *testing.T) {
	s := newStore(t)
	for _, src := range []string{"=a", "=b", "=c"} {
		observe(t, s, src, "x."+src[1:], types.SourceLearned)
		observe(t, s, src, "y."+src[1:], types.SourceLearned)
	}
	m := loaded(t, s)

	send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)
	send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 2, m.cursor)
	send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 0, m.cursor, "wraps to the first pending field")
	assert.Equal(t, 1, m.Pending())
}

func TestChoiceWraps(t *testing.T) {
	s := newStore(t)
	observe(t, s, "=a", "x.a", types.SourceLearned)
	observe(t, s, "=a", "y.a", types.SourceLearned)
	m := loaded(t, s)

	send(t, m, runes("h"))
	assert.Equal(t, 1, m.items[0].choice)
	send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.items[0].choice)
}

func TestCopyTag(t *testing.T) {
	s := newStore(t)
	observe(t, s, "=a", "x.a", types.SourceLearned)
	observe(t, s, "=a", "y.a", types.SourceLearned)
	m := loaded(t, s)

	var copied string
	m.copy = func(v string) error {
		copied = v
		return nil
	}
	send(t, m, runes("c"))
	assert.Equal(t, "{x.a}", copied)
	assert.Equal(t, "copied {x.a}", m.message)

	m.copy = func(string) error { return errors.New("no clipboard") }
	send(t, m, runes("c"))
	assert.True(t, m.messageErr)
	assert.Contains(t, m.message, "no clipboard")
}

type failingStore struct{}

func (failingStore) Ambiguous(context.Context) ([]types.FieldMapping, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) Observe(context.Context, mappingstore.Observation) (types.FieldMapping, error) {
	return types.FieldMapping{}, errors.New("unreachable")
}

func TestLoadError(t *testing.T) {
	m := NewModel(context.Background(), failingStore{})
	send(t, m, m.Init()())
	assert.True(t, m.messageErr)
	assert.Contains(t, m.View(), "database is locked")
}

func TestEmptyStore(t *testing.T) {
	m := loaded(t, newStore(t))
	assert.Contains(t, m.View(), "No ambiguous mappings.")
	assert.Nil(t, send(t, m, tea.KeyMsg{Type: tea.KeyEnter}))
}

func TestQuit(t *testing.T) {
	m := loaded(t, newStore(t))
	assert.IsType(t, tea.QuitMsg{}, send(t, m, runes("q")))
}

func TestView(t *testing.T) {
	s := newStore(t)
	observe(t, s, "=client", "project.client_name", types.SourceLearned)
	observe(t, s, "=client", "customer.name", types.SourceLearned)
	m := loaded(t, s)

	v := m.View()
	assert.Contains(t, v, "Review ambiguous mappings")
	assert.Contains(t, v, "1 pending, 0 accepted")
	assert.Contains(t, v, "=client")
	assert.Contains(t, v, "{project.client_name} (seen 1)")
	assert.Contains(t, v, "{customer.name} (seen 1)")

	send(t, m, runes("?"))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "previous destination")
}
