// Package crdt implements the two CRDT document types that back a Diaryx
// workspace: the Workspace CRDT (doc-id -> FileMetadata map) and the Body
// CRDT (per-file text document). Both use a last-writer-wins merge strategy
// keyed by a millisecond timestamp with a device-id tiebreak, re-serialized
// as whole-value updates rather than a general-purpose operational CRDT --
// see DESIGN.md for why no third-party CRDT library from the retrieval pack
// was a fit here.
package crdt

import "strings"

// WorkspaceDocName returns the Update Store document name for a workspace's
// metadata document: "workspace:<workspace-id>".
func WorkspaceDocName(workspaceID string) string {
	return "workspace:" + workspaceID
}

// BodyDocName returns the Update Store document name for a file's body
// document: "body:<workspace-id>/<relative-path>".
func BodyDocName(workspaceID, relativePath string) string {
	return "body:" + workspaceID + "/" + relativePath
}

// BodyDocPrefix returns the prefix shared by every body document name that
// belongs to a workspace, used by rebuild/delete operations that need to
// clear all of a workspace's body docs.
func BodyDocPrefix(workspaceID string) string {
	return "body:" + workspaceID + "/"
}

// IsLegacyPathKey reports whether a Workspace CRDT key is a legacy
// path-keyed row rather than a doc-id: it is a path iff it contains '/' or
// ends with ".md".
func IsLegacyPathKey(key string) bool {
	return strings.Contains(key, "/") || strings.HasSuffix(key, ".md")
}
