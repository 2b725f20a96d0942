// Package commit implements the Commit Pipeline and Rebuild operations from
// spec.md §4.10-4.11, grounded on
// original_source/crdt/git/{commit,rebuild}.rs's exact tree-build and
// commit semantics.
package commit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
	"github.com/goliatone/diaryx-sync/internal/history"
	"github.com/goliatone/diaryx-sync/internal/materialize"
	"github.com/goliatone/diaryx-sync/internal/store"
	"github.com/goliatone/diaryx-sync/internal/validate"
)

// Options configures a single commit run, ported from the original's
// CommitOptions (author defaults: "Diaryx" / "noreply@diaryx.app").
type Options struct {
	Message        string
	Author         history.Author
	KeepUpdates    int
	SkipValidation bool
}

// DefaultOptions returns the zero-value-safe defaults: no message (an
// auto-generated one is used), the Diaryx author, compact everything
// (keep_updates=0), validation enabled.
func DefaultOptions() Options {
	return Options{Author: history.DefaultAuthor}
}

// Result is the outcome of a successful commit.
type Result struct {
	CommitID  history.Hash
	FileCount int
	Compacted bool
}

// nowFunc is overridable in tests.
var nowFunc = time.Now

// Run executes the five-step commit pipeline documented in spec.md §4.10:
// materialize, validate, build the git tree, commit, and compact. tracker
// is the caller-owned Health Tracker for this workspace (its consecutive
// failure count must persist across calls to Run for §4.9's self-healing
// semantics to work).
func Run(ctx context.Context, st store.Store, hist *history.Store, ws *crdt.Workspace, bodies *crdt.BodyManager, workspaceID string, opts Options, tracker *validate.HealthTracker) (Result, error) {
	materialized := materialize.Materialize(ws, bodies, workspaceID)
	if len(materialized.Files) == 0 {
		return Result{}, diaryxerrors.Validation(nil, "No files to commit")
	}

	if !opts.SkipValidation {
		report, err := validate.Validate(ctx, ws, bodies, st, workspaceID)
		if err != nil {
			return Result{}, err
		}
		if !report.IsOK() {
			action := tracker.RecordFailure()
			summary := issueSummary(report, 5)
			switch action {
			case validate.RebuildCrdt:
				return Result{}, diaryxerrors.Validation(nil, fmt.Sprintf(
					"validation failed %d times, CRDT rebuild recommended: %s",
					tracker.ConsecutiveFailures(), summary))
			default: // SkipCommit
				return Result{}, diaryxerrors.Validation(nil, fmt.Sprintf(
					"validation failed (attempt %d), skipping commit: %s",
					tracker.ConsecutiveFailures(), summary))
			}
		}
		tracker.RecordSuccess()
	}

	treeHash, err := buildTree(hist, materialized.Files)
	if err != nil {
		return Result{}, err
	}

	var parents []history.Hash
	if head, ok, err := hist.Head(); err != nil {
		return Result{}, err
	} else if ok {
		parents = []history.Hash{head}
	}

	author := opts.Author
	if author == (history.Author{}) {
		author = history.DefaultAuthor
	}
	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("Workspace snapshot at %s", nowFunc().UTC().Format(time.RFC3339))
	}

	commitHash, err := hist.Commit(treeHash, parents, author, message, nowFunc())
	if err != nil {
		return Result{}, err
	}

	if err := compactWorkspace(ctx, st, ws, workspaceID, opts.KeepUpdates); err != nil {
		return Result{}, err
	}

	return Result{CommitID: commitHash, FileCount: len(materialized.Files), Compacted: true}, nil
}

func issueSummary(report validate.SanityReport, limit int) string {
	messages := make([]string, 0, limit)
	for i, issue := range report.Issues {
		if i >= limit {
			break
		}
		messages = append(messages, issue.Message)
	}
	return strings.Join(messages, "; ")
}

// compactWorkspace compacts the workspace doc and every active file's body
// doc, matching original_source/crdt/git/commit.rs's compact_workspace.
func compactWorkspace(ctx context.Context, st store.Store, ws *crdt.Workspace, workspaceID string, keepUpdates int) error {
	if err := st.Compact(ctx, crdt.WorkspaceDocName(workspaceID), keepUpdates); err != nil {
		return err
	}
	for docID, meta := range ws.ListActiveFiles() {
		if meta.Deleted {
			continue
		}
		path := docID
		if !crdt.IsLegacyPathKey(docID) {
			if p, ok := ws.GetPath(docID); ok {
				path = p
			} else {
				continue
			}
		}
		if err := st.Compact(ctx, crdt.BodyDocName(workspaceID, path), keepUpdates); err != nil {
			return err
		}
	}
	return nil
}

type fileEntry struct {
	components []string
	content    string
}

// buildTree recursively groups MaterializedFile.Path components into
// nested git trees, matching original_source/crdt/git/commit.rs's
// build_tree/build_tree_recursive.
func buildTree(hist *history.Store, files []materialize.MaterializedFile) (history.Hash, error) {
	entries := make([]fileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, fileEntry{components: strings.Split(f.Path, "/"), content: f.Content})
	}
	return buildTreeRecursive(hist, entries, 0)
}

func buildTreeRecursive(hist *history.Store, entries []fileEntry, depth int) (history.Hash, error) {
	dirs := make(map[string][]fileEntry)
	var treeEntries []history.TreeEntry

	for _, e := range entries {
		if depth+1 == len(e.components) {
			blobHash, err := hist.WriteBlob([]byte(e.content))
			if err != nil {
				return history.ZeroHash, err
			}
			treeEntries = append(treeEntries, history.TreeEntry{
				Name: e.components[depth], Kind: history.KindBlob, Hash: blobHash, Mode: history.ModeFile,
			})
		} else if depth < len(e.components) {
			dirName := e.components[depth]
			dirs[dirName] = append(dirs[dirName], e)
		}
	}

	for dirName, subEntries := range dirs {
		subHash, err := buildTreeRecursive(hist, subEntries, depth+1)
		if err != nil {
			return history.ZeroHash, err
		}
		treeEntries = append(treeEntries, history.TreeEntry{
			Name: dirName, Kind: history.KindTree, Hash: subHash, Mode: history.ModeDir,
		})
	}

	return hist.WriteTree(treeEntries)
}
