package cli

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/classpath/pkg/localrepo"
	"github.com/matzehuels/classpath/pkg/maven"
	"github.com/matzehuels/classpath/pkg/repository"
	"github.com/matzehuels/classpath/pkg/resolve"
	"github.com/matzehuels/classpath/pkg/transport"
)

func fixtureGraph(t *testing.T) *resolve.Graph {
	t.Helper()
	f := newFixture(t)
	chain(f)
	f.publish("com.acme:tool:1.0")

	r, err := resolve.New(resolve.Options{
		Repositories: []repository.Repository{{
			ID:      "fixtures",
			URL:     f.srv.URL + "/",
			Release: repository.Policy{Enabled: true, Update: repository.UpdateNever, Checksum: repository.ChecksumWarn},
		}},
		Local:     localrepo.New(localrepo.Options{Root: f.local}, nil),
		Transport: transport.New(transport.Options{Attempts: 1}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	deps, err := maven.ParseDependencies([]string{"com.acme:app:1.0", "com.acme:tool:1.0"}, maven.DefaultType)
	if err != nil {
		t.Fatal(err)
	}
	g, err := r.Resolve(context.Background(), deps)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return g
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m TreeModel, keys ...string) TreeModel {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(TreeModel)
	}
	return m
}

func TestTreeModelNavigation(t *testing.T) {
	m := newTreeModel(fixtureGraph(t))
	if len(m.rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(m.rows))
	}

	m = press(m, "down", "j", "down", "down", "down")
	if m.Cursor != 3 {
		t.Errorf("Cursor = %d, want 3 (clamped)", m.Cursor)
	}
	m = press(m, "up", "k", "k", "k", "k")
	if m.Cursor != 0 {
		t.Errorf("Cursor = %d, want 0 (clamped)", m.Cursor)
	}
}

func TestTreeModelFolding(t *testing.T) {
	m := newTreeModel(fixtureGraph(t))

	m = press(m, "enter")
	if len(m.rows) != 2 {
		t.Fatalf("rows after folding app = %d, want 2", len(m.rows))
	}
	if got := m.current().Coordinate.Display(); got != "com.acme:app:1.0" {
		t.Errorf("current = %s, want com.acme:app:1.0", got)
	}

	m = press(m, "l")
	if len(m.rows) != 4 {
		t.Errorf("rows after unfolding = %d, want 4", len(m.rows))
	}

	// A leaf cannot fold.
	m = press(m, "j", "j", "h")
	if len(m.rows) != 4 {
		t.Errorf("rows after folding a leaf = %d, want 4", len(m.rows))
	}

	m = press(m, "k", "h")
	if len(m.rows) != 3 {
		t.Errorf("rows after folding lib = %d, want 3", len(m.rows))
	}
}

func TestTreeModelQuit(t *testing.T) {
	m := newTreeModel(fixtureGraph(t))
	for _, k := range []string{"q", "esc"} {
		msg := key(k)
		if k == "esc" {
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		}
		if _, cmd := m.Update(msg); cmd == nil {
			t.Errorf("Update(%s) cmd = nil, want quit", k)
		}
	}
	if _, cmd := m.Update(key("j")); cmd != nil {
		t.Error("Update(j) cmd != nil, want nil")
	}
}

func TestTreeModelScroll(t *testing.T) {
	m := newTreeModel(fixtureGraph(t))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	m = next.(TreeModel)
	if m.Height != 5 {
		t.Fatalf("Height = %d, want 5", m.Height)
	}
	m.Height = 2
	m = press(m, "j", "j", "j")
	if m.Offset != 2 {
		t.Errorf("Offset = %d, want 2", m.Offset)
	}
	if strings.Contains(m.View(), "com.acme:app:1.0\n") {
		t.Error("View() shows a row scrolled out of view")
	}
}

func TestTreeModelView(t *testing.T) {
	m := newTreeModel(fixtureGraph(t))
	m = press(m, "j")

	view := m.View()
	for _, want := range []string{"Dependency Tree", "com.acme:app:1.0", "com.acme:lib:2.0", "declared", "lib-2.0.jar", "[2/4]"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}
