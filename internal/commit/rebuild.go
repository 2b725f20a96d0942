package commit

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
	"github.com/goliatone/diaryx-sync/internal/history"
	"github.com/goliatone/diaryx-sync/internal/materialize"
	"github.com/goliatone/diaryx-sync/internal/store"
)

// Rebuild replays a committed history tree into a fresh Workspace+Body CRDT
// pair, per spec.md §4.11: resolve the commit (given, or HEAD), delete any
// existing docs for workspaceID from st, then walk the tree populating the
// new CRDTs keyed by path (not a fresh doc-id -- the original calls this
// out as load-bearing for the rebuild fixed-point property, and this port
// preserves it verbatim).
func Rebuild(ctx context.Context, hist *history.Store, st store.Store, workspaceID string, commitID *history.Hash) (fileCount int, err error) {
	var resolvedID history.Hash
	if commitID != nil {
		resolvedID = *commitID
	} else {
		head, ok, headErr := hist.Head()
		if headErr != nil {
			return 0, headErr
		}
		if !ok {
			return 0, diaryxerrors.NotFound(nil, "no HEAD to rebuild from")
		}
		resolvedID = head
	}

	info, err := hist.LookupCommit(resolvedID)
	if err != nil {
		return 0, err
	}

	if err := clearWorkspaceDocs(ctx, st, workspaceID); err != nil {
		return 0, err
	}

	ws := crdt.NewWorkspace(crdt.WorkspaceDocName(workspaceID), "rebuild", uuid.NewString)
	bodies := crdt.NewBodyManager("rebuild")

	count, err := walkTree(hist, info.TreeHash, "", ws, bodies, workspaceID)
	if err != nil {
		return 0, err
	}

	if err := st.SaveDoc(ctx, ws.Name(), ws.EncodeStateAsUpdate()); err != nil {
		return 0, err
	}
	for _, name := range bodies.Names() {
		b := bodies.GetOrCreate(name)
		if err := st.SaveDoc(ctx, b.Name(), b.EncodeStateAsUpdate()); err != nil {
			return 0, err
		}
	}

	return count, nil
}

func clearWorkspaceDocs(ctx context.Context, st store.Store, workspaceID string) error {
	docs, err := st.ListDocs(ctx)
	if err != nil {
		return err
	}
	workspaceDoc := crdt.WorkspaceDocName(workspaceID)
	bodyPrefix := crdt.BodyDocPrefix(workspaceID)
	for _, doc := range docs {
		if doc == workspaceDoc || strings.HasPrefix(doc, bodyPrefix) {
			if err := st.DeleteDoc(ctx, doc); err != nil {
				return err
			}
		}
	}
	return nil
}

func walkTree(hist *history.Store, treeHash history.Hash, prefix string, ws *crdt.Workspace, bodies *crdt.BodyManager, workspaceID string) (int, error) {
	entries, err := hist.ReadTree(treeHash)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		path := entry.Name
		if prefix != "" {
			path = prefix + "/" + entry.Name
		}

		switch entry.Kind {
		case history.KindBlob:
			if !strings.HasSuffix(path, ".md") {
				continue
			}
			content, err := hist.BlobContent(entry.Hash)
			if err != nil {
				return count, err
			}
			fm, body, err := materialize.ParseFrontMatter(content)
			if err != nil {
				return count, diaryxerrors.Parse(err, "parse snapshot markdown at "+path)
			}

			meta := frontMatterToMetadata(fm, path)
			ws.SetFile(path, meta, fm.Updated)

			bodyText := strings.TrimPrefix(string(body), "\n")
			bodies.GetOrCreate(crdt.BodyDocName(workspaceID, path)).SetBody(bodyText, fm.Updated)

			count++
		case history.KindTree:
			sub, err := walkTree(hist, entry.Hash, path, ws, bodies, workspaceID)
			if err != nil {
				return count, err
			}
			count += sub
		}
	}
	return count, nil
}

// frontMatterToMetadata reconstructs a FileMetadata from a parsed
// FrontMatter, resolving part_of/contents link syntax back to canonical
// paths via the §6 link parser (accepting any of the read formats).
func frontMatterToMetadata(fm materialize.FrontMatter, path string) crdt.FileMetadata {
	meta := crdt.FileMetadata{
		Filename:    path[strings.LastIndex(path, "/")+1:],
		Attachments: fm.Attachments,
		Extra:       fm.Extra,
		ModifiedAt:  fm.Updated,
	}
	if fm.Title != "" {
		title := fm.Title
		meta.Title = &title
	}
	if fm.Description != "" {
		description := fm.Description
		meta.Description = &description
	}
	if len(fm.Audience) > 0 {
		audience := append([]string(nil), fm.Audience...)
		meta.Audience = &audience
	}
	if fm.PartOf != "" {
		parsed := materialize.ParseLink(fm.PartOf)
		canonical := materialize.ToCanonical(parsed, path)
		meta.PartOf = &canonical
	}
	if fm.Contents != nil {
		resolved := make([]string, 0, len(*fm.Contents))
		for _, raw := range *fm.Contents {
			parsed := materialize.ParseLink(raw)
			resolved = append(resolved, materialize.ToCanonical(parsed, path))
		}
		meta.Contents = &resolved
	}
	return meta
}
