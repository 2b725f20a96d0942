package commit

import (
	"context"
	"testing"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/history"
	"github.com/goliatone/diaryx-sync/internal/store"
	"github.com/goliatone/diaryx-sync/internal/validate"
)

func setupWorkspace(t *testing.T) (*crdt.Workspace, *crdt.BodyManager, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	ws := crdt.NewWorkspace(crdt.WorkspaceDocName("ws"), "dev", func() string { return "note-id" })
	title := "Hello"
	docID, err := ws.CreateFile(crdt.FileMetadata{Filename: "hello.md", Title: &title}, 1000)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	path, _ := ws.GetPath(docID)
	bodies := crdt.NewBodyManager("dev")
	bodies.GetOrCreate(crdt.BodyDocName("ws", path)).SetBody("Hello world", 1000)
	return ws, bodies, st
}

func TestCommitSingleFile(t *testing.T) {
	ws, bodies, st := setupWorkspace(t)
	hist, err := history.Init(t.TempDir(), history.Standard)
	if err != nil {
		t.Fatalf("init history: %v", err)
	}
	tracker := validate.NewHealthTracker()

	result, err := Run(context.Background(), st, hist, ws, bodies, "ws", Options{SkipValidation: true}, tracker)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.FileCount != 1 || !result.Compacted {
		t.Fatalf("unexpected result: %+v", result)
	}

	head, ok, err := hist.Head()
	if err != nil || !ok || head != result.CommitID {
		t.Fatalf("expected head to equal commit id, got %s ok=%v err=%v", head, ok, err)
	}
}

func TestCommitFailsWithNoFiles(t *testing.T) {
	st := store.NewMemoryStore()
	ws := crdt.NewWorkspace(crdt.WorkspaceDocName("ws"), "dev", func() string { return "id" })
	bodies := crdt.NewBodyManager("dev")
	hist, err := history.Init(t.TempDir(), history.Standard)
	if err != nil {
		t.Fatalf("init history: %v", err)
	}
	tracker := validate.NewHealthTracker()

	_, err = Run(context.Background(), st, hist, ws, bodies, "ws", Options{SkipValidation: true}, tracker)
	if err == nil {
		t.Fatalf("expected error for empty workspace")
	}
}

func TestCommitSecondTimeUsesFirstAsParent(t *testing.T) {
	ws, bodies, st := setupWorkspace(t)
	hist, err := history.Init(t.TempDir(), history.Standard)
	if err != nil {
		t.Fatalf("init history: %v", err)
	}
	tracker := validate.NewHealthTracker()

	first, err := Run(context.Background(), st, hist, ws, bodies, "ws", Options{SkipValidation: true, Message: "first"}, tracker)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}

	title := "Second"
	docID, err := ws.CreateFile(crdt.FileMetadata{Filename: "second.md", Title: &title}, 2000)
	if err != nil {
		t.Fatalf("create second file: %v", err)
	}
	path, _ := ws.GetPath(docID)
	bodies.GetOrCreate(crdt.BodyDocName("ws", path)).SetBody("second body", 2000)

	second, err := Run(context.Background(), st, hist, ws, bodies, "ws", Options{SkipValidation: true, Message: "second"}, tracker)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if second.FileCount != 2 {
		t.Fatalf("expected 2 files on second commit, got %d", second.FileCount)
	}

	info, err := hist.LookupCommit(second.CommitID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(info.Parents) != 1 || info.Parents[0] != first.CommitID {
		t.Fatalf("expected second commit's parent to be first, got %+v", info.Parents)
	}
}

func TestCommitValidationFailureSkipsThenRebuilds(t *testing.T) {
	st := store.NewMemoryStore()
	ws := crdt.NewWorkspace(crdt.WorkspaceDocName("ws"), "dev", func() string { return "id" })
	bodies := crdt.NewBodyManager("dev")

	// A non-index file with no body is an EmptyBody issue.
	title := "Broken"
	if _, err := ws.CreateFile(crdt.FileMetadata{Filename: "broken.md", Title: &title}, 1000); err != nil {
		t.Fatalf("create file: %v", err)
	}

	hist, err := history.Init(t.TempDir(), history.Standard)
	if err != nil {
		t.Fatalf("init history: %v", err)
	}
	tracker := validate.NewHealthTracker()

	for i := 0; i < 2; i++ {
		if _, err := Run(context.Background(), st, hist, ws, bodies, "ws", Options{}, tracker); err == nil {
			t.Fatalf("expected validation failure on attempt %d", i+1)
		}
	}
	if tracker.ConsecutiveFailures() != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", tracker.ConsecutiveFailures())
	}

	_, err = Run(context.Background(), st, hist, ws, bodies, "ws", Options{}, tracker)
	if err == nil {
		t.Fatalf("expected rebuild-recommended error on third failure")
	}
	if tracker.ConsecutiveFailures() != 3 {
		t.Fatalf("expected 3 consecutive failures, got %d", tracker.ConsecutiveFailures())
	}
}
