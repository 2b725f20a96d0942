package commit

import (
	"context"
	"testing"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/history"
	"github.com/goliatone/diaryx-sync/internal/store"
	"github.com/goliatone/diaryx-sync/internal/validate"
)

func TestRebuildFromGitReconstructsWorkspace(t *testing.T) {
	ws, bodies, st := setupWorkspace(t)
	hist, err := history.Init(t.TempDir(), history.Standard)
	if err != nil {
		t.Fatalf("init history: %v", err)
	}
	tracker := validate.NewHealthTracker()

	if _, err := Run(context.Background(), st, hist, ws, bodies, "ws", Options{SkipValidation: true}, tracker); err != nil {
		t.Fatalf("commit: %v", err)
	}

	newStore := store.NewMemoryStore()
	count, err := Rebuild(context.Background(), hist, newStore, "ws", nil)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 file rebuilt, got %d", count)
	}

	snapshot, ok, err := newStore.LoadDoc(context.Background(), crdt.WorkspaceDocName("ws"))
	if err != nil || !ok {
		t.Fatalf("expected rebuilt workspace snapshot, ok=%v err=%v", ok, err)
	}
	rebuiltWS := crdt.NewWorkspace(crdt.WorkspaceDocName("ws"), "check", func() string { return "" })
	if err := rebuiltWS.ApplyUpdate(snapshot, crdt.OriginSync); err != nil {
		t.Fatalf("apply rebuilt snapshot: %v", err)
	}
	files := rebuiltWS.ListFiles()
	if len(files) != 1 {
		t.Fatalf("expected 1 file in rebuilt workspace, got %d", len(files))
	}
	meta, ok := files["hello.md"]
	if !ok {
		t.Fatalf("expected path-keyed entry 'hello.md', got keys %+v", files)
	}
	if meta.Title == nil || *meta.Title != "Hello" {
		t.Fatalf("expected rebuilt title 'Hello', got %+v", meta.Title)
	}

	bodySnapshot, ok, err := newStore.LoadDoc(context.Background(), crdt.BodyDocName("ws", "hello.md"))
	if err != nil || !ok {
		t.Fatalf("expected rebuilt body snapshot, ok=%v err=%v", ok, err)
	}
	rebuiltBody := crdt.NewBody(crdt.BodyDocName("ws", "hello.md"), "check")
	if err := rebuiltBody.ApplyUpdate(bodySnapshot, crdt.OriginSync); err != nil {
		t.Fatalf("apply rebuilt body: %v", err)
	}
	if rebuiltBody.GetBody() != "Hello world" {
		t.Fatalf("expected body 'Hello world', got %q", rebuiltBody.GetBody())
	}
}

func TestRebuildFromSpecificCommit(t *testing.T) {
	ws, bodies, st := setupWorkspace(t)
	hist, err := history.Init(t.TempDir(), history.Standard)
	if err != nil {
		t.Fatalf("init history: %v", err)
	}
	tracker := validate.NewHealthTracker()

	first, err := Run(context.Background(), st, hist, ws, bodies, "ws", Options{SkipValidation: true}, tracker)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}

	title := "Second"
	docID, err := ws.CreateFile(crdt.FileMetadata{Filename: "second.md", Title: &title}, 2000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	path, _ := ws.GetPath(docID)
	bodies.GetOrCreate(crdt.BodyDocName("ws", path)).SetBody("second body", 2000)

	if _, err := Run(context.Background(), st, hist, ws, bodies, "ws", Options{SkipValidation: true}, tracker); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	newStore := store.NewMemoryStore()
	firstID := first.CommitID
	count, err := Rebuild(context.Background(), hist, newStore, "ws", &firstID)
	if err != nil {
		t.Fatalf("rebuild from first commit: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 file rebuilt from the first commit, got %d", count)
	}
}
