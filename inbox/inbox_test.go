package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/errors"
)

type recorder struct {
	mu    sync.Mutex
	seen  []string
	fails map[string]error
}

func (r *recorder) process(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := filepath.Base(path)
	r.seen = append(r.seen, name)
	return r.fails[name]
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func newTestInbox(t *testing.T, rec *recorder) (*Inbox, Config) {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		Dir:      filepath.Join(root, "processing"),
		ErrorDir: filepath.Join(root, "error"),
		Debounce: 20 * time.Millisecond,
	}
	in, err := New(cfg, rec.process)
	require.NoError(t, err)
	return in, in.cfg
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("Empresa,Modelo\nAcme,revenue\n"), 0o644))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestAccepts(t *testing.T) {
	assert.True(t, Accepts("clientes.csv"))
	assert.True(t, Accepts("/x/Clientes.XLSX"))
	assert.True(t, Accepts("macro.xlsm"))
	assert.False(t, Accepts("~$clientes.xlsx"))
	assert.False(t, Accepts(".clientes.csv"))
	assert.False(t, Accepts("notes.txt"))
	assert.False(t, Accepts("clientes.csv.tmp"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{ErrorDir: "error"}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = New(Config{Dir: "processing"}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	in, err := New(Config{Dir: "processing", ErrorDir: "error"}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("processing", "done"), in.cfg.DoneDir)
	assert.Equal(t, 500*time.Millisecond, in.cfg.Debounce)
}

func TestFromConfig(t *testing.T) {
	cfg := &am.EngineConfig{}
	cfg.Paths.Processing = "processing"
	cfg.Paths.Error = "error"
	cfg.Watch.DebounceMS = 250

	in, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "processing", in.cfg.Dir)
	assert.Equal(t, "error", in.cfg.ErrorDir)
	assert.Equal(t, 250*time.Millisecond, in.cfg.Debounce)
}

func TestDrain_MovesByOutcome(t *testing.T) {
	rec := &recorder{fails: map[string]error{
		"broken.pdf.csv": errors.Wrap(errors.ErrEmptyDataset, "broken.pdf.csv"),
	}}
	in, cfg := newTestInbox(t, rec)
	require.NoError(t, os.MkdirAll(cfg.Dir, 0o755))

	touch(t, filepath.Join(cfg.Dir, "b_clientes.csv"))
	touch(t, filepath.Join(cfg.Dir, "broken.pdf.csv"))
	touch(t, filepath.Join(cfg.Dir, "a_clientes.xlsx"))
	touch(t, filepath.Join(cfg.Dir, "readme.txt"))

	n, err := in.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a_clientes.xlsx", "b_clientes.csv", "broken.pdf.csv"}, rec.names())

	assert.True(t, exists(filepath.Join(cfg.DoneDir, "a_clientes.xlsx")))
	assert.True(t, exists(filepath.Join(cfg.DoneDir, "b_clientes.csv")))
	assert.True(t, exists(filepath.Join(cfg.ErrorDir, "broken.pdf.csv")))
	assert.True(t, exists(filepath.Join(cfg.Dir, "readme.txt")), "unrelated files stay")
	assert.False(t, exists(filepath.Join(cfg.Dir, "b_clientes.csv")))
}

func TestDrain_InterruptedFileStays(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	cfg := Config{Dir: filepath.Join(root, "processing"), ErrorDir: filepath.Join(root, "error")}
	in, err := New(cfg, func(context.Context, string) error {
		cancel()
		return context.Canceled
	})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(cfg.Dir, 0o755))
	touch(t, filepath.Join(cfg.Dir, "clientes.csv"))

	n, err := in.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, exists(filepath.Join(cfg.Dir, "clientes.csv")))
}

func TestMoveInto_NameTaken(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clientes.csv")
	dest := filepath.Join(dir, "done")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	touch(t, filepath.Join(dest, "clientes.csv"))
	touch(t, src)

	now := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC)
	moved, err := moveInto(src, dest, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "clientes_20260102_030405.600000.csv"), moved)
	assert.True(t, exists(moved))
	assert.False(t, exists(src))
}

func TestRun_PicksUpNewFiles(t *testing.T) {
	rec := &recorder{}
	in, cfg := newTestInbox(t, rec)

	// Present before start: drained first
	require.NoError(t, os.MkdirAll(cfg.Dir, 0o755))
	touch(t, filepath.Join(cfg.Dir, "early.csv"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	require.Eventually(t, func() bool {
		return exists(filepath.Join(cfg.DoneDir, "early.csv"))
	}, 5*time.Second, 10*time.Millisecond)

	touch(t, filepath.Join(cfg.Dir, "late.csv"))
	require.Eventually(t, func() bool {
		return exists(filepath.Join(cfg.DoneDir, "late.csv"))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, []string{"early.csv", "late.csv"}, rec.names())
}
