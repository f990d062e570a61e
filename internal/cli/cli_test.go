package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/types"
	"github.com/forPelevin/timewarp/internal/usecase"
)

func TestProgressModel_Update(t *testing.T) {
	t.Parallel()

	cancelled := false
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var m tea.Model = newProgressModel("in.mp4", func() { cancelled = true }, start)

	m, _ = m.Update(progressMsg(usecase.Progress{Fraction: 0.4}))
	m, _ = m.Update(progressMsg(usecase.Progress{Fraction: 0.3, Preview: &types.Preview{Index: 12, Warped: 65}}))
	m, _ = m.Update(tickMsg(start.Add(3 * time.Second)))
	pm := m.(progressModel)
	if pm.fraction != 0.4 || pm.previews != 1 || pm.lastFrame != 12 {
		t.Fatalf("unexpected model: %+v", pm)
	}
	view := pm.View()
	for _, want := range []string{"in.mp4", "#12 at 01:05", "40.0%", "3s"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled || !m.(progressModel).stopping {
		t.Fatalf("q must cancel the run")
	}
	if !strings.Contains(m.View(), "Cancelling") {
		t.Fatalf("expected cancelling hint")
	}

	m, cmd := m.Update(doneMsg{err: usecase.ErrCancelled})
	if cmd == nil || !m.(progressModel).done {
		t.Fatalf("done must quit")
	}
	if !strings.Contains(m.View(), "failed: Cancelled") {
		t.Fatalf("expected failure line:\n%s", m.View())
	}
}

func TestRenderBar_Clamps(t *testing.T) {
	t.Parallel()

	if got := strings.Count(renderBar(2), "█"); got != barWidth {
		t.Fatalf("expected full bar, got %d cells", got)
	}
	if got := strings.Count(renderBar(-1), "█"); got != 0 {
		t.Fatalf("expected empty bar, got %d cells", got)
	}
}

func TestGetenvDefault(t *testing.T) {
	t.Setenv("TIMEWARP_TEST_VALUE", "")
	if got := getenvDefault("TIMEWARP_TEST_VALUE", "def"); got != "def" {
		t.Fatalf("got %q", got)
	}
	t.Setenv("TIMEWARP_TEST_VALUE", "set")
	if got := getenvDefault("TIMEWARP_TEST_VALUE", "def"); got != "set" {
		t.Fatalf("got %q", got)
	}
}

func TestComponentsCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TIMEWARP_PRESETS_DB", filepath.Join(dir, "presets.db"))

	out, err := execute(t, "components", "sample", "--factor", "2")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	cs, err := component.Decode([]byte(out))
	if err != nil || len(cs) != 6 || cs[0].Factor != 2 {
		t.Fatalf("unexpected sample output (%v):\n%s", err, out)
	}
	file := filepath.Join(dir, "sample.json")
	if err := os.WriteFile(file, []byte(out), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err = execute(t, "components", "validate", file)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "timeline fully covered") || !strings.Contains(out, "Triangle") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}

	if _, err := execute(t, "components", "save", "demo", file); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err = execute(t, "components", "list")
	if err != nil || !strings.Contains(out, "demo") {
		t.Fatalf("list (%v):\n%s", err, out)
	}
	out, err = execute(t, "components", "load", "demo")
	if err != nil || !strings.Contains(out, `"warpTypeName": "Double Smooth Step"`) {
		t.Fatalf("load (%v):\n%s", err, out)
	}
	if _, err := execute(t, "components", "delete", "demo"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := execute(t, "components", "load", "demo"); err == nil {
		t.Fatalf("expected missing preset error")
	}
}

func TestComponentsSample_RejectsOutOfRangeFactor(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "components", "sample", "--factor", "9")
	if !errors.Is(err, component.ErrInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}

func TestLookupCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lut.json"), []byte(`[{"warped":0,"original":0},{"warped":20,"original":10}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"original_sec":10}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "lookup", dir, "10", "25")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != "10.000\t0.500000\t00:05" || lines[1] != "25.000\t1.000000\t00:10" {
		t.Fatalf("unexpected lookup output:\n%s", out)
	}

	out, err = execute(t, "lookup", dir, "--fraction", "0.25")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "5.000\t0.250000") {
		t.Fatalf("unexpected fraction lookup:\n%s", out)
	}
}

func TestWarpRejectsConflictingComponentFlags(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "warp", "in.mp4", "--components", "a.json", "--preset", "p")
	if err == nil || !strings.Contains(err.Error(), "either --components or --preset") {
		t.Fatalf("expected flag conflict, got %v", err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
