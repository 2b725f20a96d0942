// Package workspace wires the Commit Pipeline, Rebuild, and a filesystem
// import bootstrap into go-command's Commander[T] shape, grounded on the
// teacher's internal/commands/markdown package (markdowncmd.{messages,handlers}.go):
// the same Type()/Validate() message pattern, the same generic
// internal/commands.Handler[T] wrapper for context/timeout/logging/error
// categorisation, and the same CLIHandler()/CLIOptions() surface for kong
// registration.
package workspace

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	commitMessageType   = "diaryx.workspace.commit"
	rebuildMessageType  = "diaryx.workspace.rebuild"
	importMessageType   = "diaryx.workspace.import_directory"
)

// CommitCommand triggers one run of the Commit Pipeline (spec.md §4.10)
// for WorkspaceID: materialize, validate, write the git tree, commit, and
// compact.
type CommitCommand struct {
	WorkspaceID    string `json:"workspace_id"`
	Message        string `json:"message,omitempty"`
	AuthorName     string `json:"author_name,omitempty"`
	AuthorEmail    string `json:"author_email,omitempty"`
	KeepUpdates    int    `json:"keep_updates,omitempty"`
	SkipValidation bool   `json:"skip_validation,omitempty"`
}

// Type implements command.Message.
func (CommitCommand) Type() string { return commitMessageType }

// Validate ensures a workspace id is present before handlers execute.
func (cmd CommitCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.WorkspaceID, validation.Required, validation.By(requireTrimmed("workspace_id"))),
		validation.Field(&cmd.KeepUpdates, validation.Min(0)),
	)
}

// RebuildCommand replays a committed history tree back into a fresh
// Workspace+Body CRDT pair (spec.md §4.11). CommitHash selects a specific
// commit to rebuild from; an empty string rebuilds from HEAD.
type RebuildCommand struct {
	WorkspaceID string `json:"workspace_id"`
	CommitHash  string `json:"commit_hash,omitempty"`
}

// Type implements command.Message.
func (RebuildCommand) Type() string { return rebuildMessageType }

// Validate ensures a workspace id is present and, if given, CommitHash
// looks like a hex object id.
func (cmd RebuildCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.WorkspaceID, validation.Required, validation.By(requireTrimmed("workspace_id"))),
		validation.Field(&cmd.CommitHash, validation.Length(0, 40), validation.Match(commitHashPattern)),
	)
}

var commitHashPattern = regexp.MustCompile(`^[0-9a-fA-F]*$`)

// ImportDirectoryCommand bootstraps a workspace's CRDTs from an existing
// directory of frontmatter+body markdown files, mirroring the teacher's
// markdowncmd.ImportDirectoryCommand shape but populating Workspace/Body
// CRDTs instead of CMS content records. Day One and email archive imports
// from original_source/crates/diaryx_core/src/import are explicitly out of
// scope for this module; see DESIGN.md.
type ImportDirectoryCommand struct {
	WorkspaceID string `json:"workspace_id"`
	Directory   string `json:"directory"`
	DeviceID    string `json:"device_id,omitempty"`
}

// Type implements command.Message.
func (ImportDirectoryCommand) Type() string { return importMessageType }

// Validate ensures workspace id and directory are present.
func (cmd ImportDirectoryCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.WorkspaceID, validation.Required, validation.By(requireTrimmed("workspace_id"))),
		validation.Field(&cmd.Directory, validation.Required, validation.By(requireTrimmed("directory"))),
	)
}

func requireTrimmed(field string) func(value any) error {
	return func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return validation.NewError("diaryx.workspace."+field+"_required", field+" is required")
		}
		return nil
	}
}
