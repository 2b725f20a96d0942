package materialize

import (
	"strings"
	"testing"

	"github.com/goliatone/diaryx-sync/internal/crdt"
)

func TestMaterializeResolvesNestedTreeAndSkipsTombstones(t *testing.T) {
	const workspaceID = "ws1"
	ids := []string{"parent", "child", "gone"}
	idx := 0
	ws := crdt.NewWorkspace(crdt.WorkspaceDocName(workspaceID), "devA", func() string {
		id := ids[idx]
		idx++
		return id
	})

	parentID, err := ws.CreateFile(crdt.FileMetadata{
		Filename: "parent.md",
		Contents: &[]string{},
	}, 1000)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	childID, err := ws.CreateFile(crdt.FileMetadata{
		Filename: "child.md",
		PartOf:   &parentID,
	}, 1000)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	deletedID, err := ws.CreateFile(crdt.FileMetadata{Filename: "gone.md"}, 1000)
	if err != nil {
		t.Fatalf("create deleted: %v", err)
	}
	ws.MarkDeleted(deletedID, 2000)

	const childPath = "parent.md/child.md"
	bodies := crdt.NewBodyManager("devA")
	bodies.GetOrCreate(crdt.BodyDocName(workspaceID, childPath)).SetBody("hello world\n", 1000)

	result := Materialize(ws, bodies, workspaceID)

	if len(result.Skipped) != 1 || result.Skipped[0].DocID != deletedID || result.Skipped[0].Reason != SkipDeleted {
		t.Fatalf("expected tombstoned file skipped, got %+v", result.Skipped)
	}
	if len(result.Files) != 2 {
		t.Fatalf("expected 2 materialized files, got %d: %+v", len(result.Files), result.Files)
	}

	var childFile *MaterializedFile
	for i := range result.Files {
		if result.Files[i].Path == childPath {
			childFile = &result.Files[i]
		}
	}
	if childFile == nil {
		t.Fatalf("expected %s in output, got %+v", childPath, result.Files)
	}
	if !strings.Contains(childFile.Content, "hello world") {
		t.Errorf("expected body text in content, got %q", childFile.Content)
	}
	if !strings.Contains(childFile.Content, "part_of:") {
		t.Errorf("expected resolved part_of link in content, got %q", childFile.Content)
	}

	_ = childID
}
