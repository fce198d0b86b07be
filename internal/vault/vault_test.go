package vault

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/store"
	"github.com/starford/memos/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-cache stops its janitor from a finalizer.
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

type testEnv struct {
	dir    string
	fs     *FS
	db     *store.DB
	svc    *memoservice.Service
	mirror *Mirror
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	db := testutil.TestDB(t)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := memoservice.New(db)
	return &testEnv{
		dir:    dir,
		fs:     fs,
		db:     db,
		svc:    svc,
		mirror: NewMirror(fs, db, svc, logger, nil),
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func (e *testEnv) fileContent(id int64) (string, bool) {
	data, err := os.ReadFile(filepath.Join(e.dir, memoDir, FileName(id)))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (e *testEnv) content(t *testing.T, id int64) string {
	t.Helper()
	m, err := e.db.GetMemo(context.Background(), id)
	if err != nil {
		t.Fatalf("GetMemo(%d): %v", id, err)
	}
	return m.Content
}

func TestParseFileName(t *testing.T) {
	for name, want := range map[string]int64{
		"12.md":           12,
		"/x/memos/3.md":   3,
		"12.txt":          0,
		"abc.md":          0,
		".memos-tmp-1234": 0,
		"0.md":            0,
	} {
		got, ok := ParseFileName(name)
		if ok != (want > 0) || got != want {
			t.Errorf("ParseFileName(%q) = %d, %v", name, got, ok)
		}
	}
}

func TestFS_WriteReadDelete(t *testing.T) {
	e := newTestEnv(t)
	if err := e.fs.Write(5, []byte("**five**")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := e.fs.Read(5)
	if err != nil || string(got) != "**five**" {
		t.Fatalf("Read = %q, %v", got, err)
	}
	files, err := e.fs.List()
	if err != nil || len(files) != 1 || files[0].ID != 5 {
		t.Fatalf("List = %+v, %v", files, err)
	}
	if err := e.fs.Delete(5); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := e.fs.Delete(5); err != nil {
		t.Errorf("deleting a missing file: %v", err)
	}
	if _, err := e.fs.Read(5); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMirror_FollowsEvents(t *testing.T) {
	e := newTestEnv(t)
	e.svc.OnChange(e.mirror.HandleEvent)
	ctx := context.Background()

	m, err := e.svc.SaveContent(ctx, 0, "hello #tag", "")
	if err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	if got, ok := e.fileContent(m.ID); !ok || got != "hello #tag" {
		t.Fatalf("file = %q, %v", got, ok)
	}

	if _, err := e.svc.SetRowStatus(ctx, m.ID, models.Archived); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.fileContent(m.ID); ok {
		t.Error("archived memo still mirrored")
	}

	if _, err := e.svc.SetRowStatus(ctx, m.ID, models.Normal); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.fileContent(m.ID); !ok {
		t.Error("restored memo not mirrored")
	}

	if err := e.svc.Delete(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.fileContent(m.ID); ok {
		t.Error("deleted memo still mirrored")
	}
}

func TestMirror_Sync(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seeded := testutil.SeedMemos(t, e.db, "export me", "old text", "db wins", "gone")
	exported, edited, stale, archived := seeded[0], seeded[1], seeded[2], seeded[3]
	status := models.Archived
	if _, _, err := e.db.PatchMemo(ctx, archived.ID, models.MemoPatch{RowStatus: &status}); err != nil {
		t.Fatal(err)
	}

	_ = e.fs.Write(edited.ID, []byte("* new text"))
	future := time.Now().Add(time.Hour)
	_ = os.Chtimes(filepath.Join(e.fs.Dir(), FileName(edited.ID)), future, future)
	_ = e.fs.Write(stale.ID, []byte("file loses"))
	past := time.Now().Add(-time.Hour)
	_ = os.Chtimes(filepath.Join(e.fs.Dir(), FileName(stale.ID)), past, past)
	_ = e.fs.Write(archived.ID, []byte("gone"))
	_ = e.fs.Write(999, []byte("unknown"))

	if err := e.mirror.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if got, _ := e.fileContent(exported.ID); got != "export me" {
		t.Errorf("exported file = %q", got)
	}
	if got := e.content(t, edited.ID); got != "- new text" {
		t.Errorf("imported content = %q", got)
	}
	if got, _ := e.fileContent(stale.ID); got != "db wins" {
		t.Errorf("stale file = %q", got)
	}
	if _, ok := e.fileContent(archived.ID); ok {
		t.Error("archived memo file not removed")
	}
	if _, ok := e.fileContent(999); !ok {
		t.Error("unknown file should be left alone")
	}
}

func TestMirror_ImportSkipsEmptyAndUnchanged(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	m := testutil.SeedMemos(t, e.db, "keep")[0]

	_ = e.fs.Write(m.ID, []byte(""))
	if got := e.mirror.importFile(ctx, m.ID); got != "skipped" {
		t.Errorf("empty file import = %q", got)
	}
	_ = e.fs.Write(m.ID, []byte("keep"))
	if got := e.mirror.importFile(ctx, m.ID); got != "skipped" {
		t.Errorf("unchanged file import = %q", got)
	}
	if got := e.mirror.importFile(ctx, 404); got != "failed" {
		t.Errorf("missing file import = %q", got)
	}
	if got := e.content(t, m.ID); got != "keep" {
		t.Errorf("content = %q", got)
	}
}

func TestWatcher_ImportsEditsAndRestoresRemovedFiles(t *testing.T) {
	e := newTestEnv(t)
	e.svc.OnChange(e.mirror.HandleEvent)
	ctx, cancel := context.WithCancel(context.Background())

	m, err := e.svc.SaveContent(ctx, 0, "draft", "")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.mirror.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(e.fs.Dir(), FileName(m.ID))
	_ = os.WriteFile(path, []byte("**final**"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, err := e.db.GetMemo(context.Background(), m.ID)
		return err == nil && got.Content == "**final**"
	}, "edited file not imported by watcher")

	_ = os.Remove(path)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, ok := e.fileContent(m.ID)
		return ok && got == "**final**"
	}, "removed file not restored by reconciliation")
}
