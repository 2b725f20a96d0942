package validate

import (
	"context"
	"testing"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/store"
)

func newTestWorkspace() *crdt.Workspace {
	return crdt.NewWorkspace("workspace:ws", "dev", func() string { return "doc-id" })
}

func TestEmptyWorkspaceIsOK(t *testing.T) {
	ws := newTestWorkspace()
	bodies := crdt.NewBodyManager("dev")
	report, err := Validate(context.Background(), ws, bodies, nil, "ws")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.IsOK() || report.FileCount != 0 {
		t.Fatalf("expected ok empty report, got %+v", report)
	}
}

func TestHealthyWorkspacePassesValidation(t *testing.T) {
	ws := crdt.NewWorkspace("workspace:ws", "dev", func() string { return "note-id" })
	title := "Note"
	docID, err := ws.CreateFile(crdt.FileMetadata{Filename: "note.md", Title: &title}, 1000)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	path, _ := ws.GetPath(docID)

	bodies := crdt.NewBodyManager("dev")
	bodies.GetOrCreate(crdt.BodyDocName("ws", path)).SetBody("some content", 1000)

	report, err := Validate(context.Background(), ws, bodies, nil, "ws")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.IsOK() || report.FileCount != 1 {
		t.Fatalf("expected healthy report, got %+v", report)
	}
}

func TestBrokenParentChainDetected(t *testing.T) {
	ws := newTestWorkspace()
	missingParent := "non-existent-uuid"
	ws.SetFile("some-uuid", crdt.FileMetadata{Filename: "orphan.md", PartOf: &missingParent}, 1000)

	bodies := crdt.NewBodyManager("dev")
	report, err := Validate(context.Background(), ws, bodies, nil, "ws")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.IsOK() {
		t.Fatalf("expected broken parent chain issue")
	}
	if len(report.IssuesOfKind(IssueBrokenParentChain)) != 1 {
		t.Fatalf("expected 1 broken parent chain issue, got %+v", report.Issues)
	}
}

func TestMissingChildDetected(t *testing.T) {
	ws := newTestWorkspace()
	ws.SetFile("parent-uuid", crdt.FileMetadata{
		Filename: "index.md",
		Contents: &[]string{"non-existent-child-uuid"},
	}, 1000)

	bodies := crdt.NewBodyManager("dev")
	report, err := Validate(context.Background(), ws, bodies, nil, "ws")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.IssuesOfKind(IssueMissingChild)) != 1 {
		t.Fatalf("expected 1 missing child issue, got %+v", report.Issues)
	}
}

func TestDeletedFilesSkipped(t *testing.T) {
	ws := crdt.NewWorkspace("workspace:ws", "dev", func() string { return "deleted-id" })
	title := "Deleted"
	docID, err := ws.CreateFile(crdt.FileMetadata{Filename: "deleted.md", Title: &title}, 1000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ws.MarkDeleted(docID, 2000)

	bodies := crdt.NewBodyManager("dev")
	report, err := Validate(context.Background(), ws, bodies, nil, "ws")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.IsOK() || report.FileCount != 0 {
		t.Fatalf("expected deleted files excluded, got %+v", report)
	}
}

func TestEmptyBodyDetectedForNonIndexFile(t *testing.T) {
	ws := crdt.NewWorkspace("workspace:ws", "dev", func() string { return "empty-id" })
	title := "Empty"
	docID, err := ws.CreateFile(crdt.FileMetadata{Filename: "empty.md", Title: &title}, 1000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	path, _ := ws.GetPath(docID)

	bodies := crdt.NewBodyManager("dev")
	bodies.GetOrCreate(crdt.BodyDocName("ws", path)) // leave empty

	report, err := Validate(context.Background(), ws, bodies, nil, "ws")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.IssuesOfKind(IssueEmptyBody)) != 1 {
		t.Fatalf("expected 1 empty body issue, got %+v", report.Issues)
	}
}

func TestIndexFilesAllowedEmptyBody(t *testing.T) {
	ws := crdt.NewWorkspace("workspace:ws", "dev", func() string { return "index-id" })
	title := "Index"
	docID, err := ws.CreateFile(crdt.FileMetadata{Filename: "index.md", Title: &title, Contents: &[]string{}}, 1000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	path, _ := ws.GetPath(docID)

	bodies := crdt.NewBodyManager("dev")
	bodies.GetOrCreate(crdt.BodyDocName("ws", path))

	report, err := Validate(context.Background(), ws, bodies, nil, "ws")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.IssuesOfKind(IssueEmptyBody)) != 0 {
		t.Fatalf("expected no empty body issue for index file, got %+v", report.Issues)
	}
}

func TestOrphanBodyDocDetectedViaStore(t *testing.T) {
	ws := newTestWorkspace()
	bodies := crdt.NewBodyManager("dev")

	st := store.NewMemoryStore()
	ctx := context.Background()
	if _, err := st.AppendUpdate(ctx, "body:ws/stray.md", []byte(`{"text":"x","modified_at":1,"device_id":"dev"}`), crdt.OriginLocal, "dev"); err != nil {
		t.Fatalf("append update: %v", err)
	}

	report, err := Validate(ctx, ws, bodies, st, "ws")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.IssuesOfKind(IssueOrphanBodyDoc)) != 1 {
		t.Fatalf("expected 1 orphan body doc issue, got %+v", report.Issues)
	}
}
