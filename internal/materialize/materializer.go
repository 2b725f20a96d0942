package materialize

import (
	"sort"

	"github.com/goliatone/diaryx-sync/internal/crdt"
)

// SkipReason explains why a file was excluded from materialization.
type SkipReason string

const (
	SkipUnresolvedPath SkipReason = "UnresolvedPath"
	SkipDeleted        SkipReason = "Deleted"
)

// MaterializedFile is one output row: a resolved path and the fully
// assembled frontmatter+body file content.
type MaterializedFile struct {
	Path    string
	Content string
}

// Skipped records a doc-id excluded from materialization and why.
type Skipped struct {
	DocID  string
	Reason SkipReason
}

// MaterializationResult is the output of Materialize.
type MaterializationResult struct {
	Files   []MaterializedFile
	Skipped []Skipped
}

// Materialize projects a Workspace CRDT and its Body docs into a list of
// (path, frontmatter+body) files, following the five-step contract:
// resolve paths, skip tombstones, rewrite doc-id references to resolved
// paths, serialize frontmatter in the documented order, and assemble the
// final file content.
func Materialize(ws *crdt.Workspace, bodies *crdt.BodyManager, workspaceID string) MaterializationResult {
	result := MaterializationResult{}

	all := ws.ListFiles()
	paths := make(map[string]string, len(all)) // doc-id -> resolved path
	for docID := range all {
		if p, ok := ws.GetPath(docID); ok {
			paths[docID] = p
		}
	}

	docIDs := make([]string, 0, len(all))
	for docID := range all {
		docIDs = append(docIDs, docID)
	}
	sort.Strings(docIDs)

	for _, docID := range docIDs {
		meta := all[docID]
		if meta.Deleted {
			result.Skipped = append(result.Skipped, Skipped{DocID: docID, Reason: SkipDeleted})
			continue
		}
		resolvedPath, ok := paths[docID]
		if !ok {
			result.Skipped = append(result.Skipped, Skipped{DocID: docID, Reason: SkipUnresolvedPath})
			continue
		}

		fm := FrontMatter{
			Title:       titleOf(meta),
			Description: descriptionOf(meta),
			Attachments: meta.Attachments,
			Updated:     meta.ModifiedAt,
			Extra:       meta.Extra,
		}
		if meta.Audience != nil {
			fm.Audience = *meta.Audience
		}
		if meta.PartOf != nil {
			if parentPath, ok := paths[*meta.PartOf]; ok {
				fm.PartOf = FormatLink(titleOfDoc(all, *meta.PartOf), parentPath, MarkdownRoot)
			}
		}
		if meta.Contents != nil {
			resolved := make([]string, 0, len(*meta.Contents))
			for _, ref := range *meta.Contents {
				if childPath, ok := paths[ref]; ok {
					resolved = append(resolved, FormatLink(titleOfDoc(all, ref), childPath, MarkdownRoot))
				}
			}
			fm.Contents = &resolved
		}

		bodyDocName := crdt.BodyDocName(workspaceID, resolvedPath)
		body := bodies.GetOrCreate(bodyDocName).GetBody()
		if body == "" {
			// Compatibility path for legacy data keyed by a different
			// workspace-relative key than the resolved path.
			if legacyKey := docID; legacyKey != resolvedPath && crdt.IsLegacyPathKey(legacyKey) {
				altDocName := crdt.BodyDocName(workspaceID, legacyKey)
				body = bodies.GetOrCreate(altDocName).GetBody()
			}
		}

		result.Files = append(result.Files, MaterializedFile{
			Path:    resolvedPath,
			Content: Assemble(fm, body),
		})
	}

	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	return result
}

func titleOf(meta crdt.FileMetadata) string {
	if meta.Title == nil {
		return ""
	}
	return *meta.Title
}

func descriptionOf(meta crdt.FileMetadata) string {
	if meta.Description == nil {
		return ""
	}
	return *meta.Description
}

func titleOfDoc(all map[string]crdt.FileMetadata, docID string) string {
	if meta, ok := all[docID]; ok {
		return titleOf(meta)
	}
	return ""
}
