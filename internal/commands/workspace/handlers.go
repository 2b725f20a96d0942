package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/diaryx-sync/internal/commands"
	"github.com/goliatone/diaryx-sync/internal/commit"
	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
	"github.com/goliatone/diaryx-sync/internal/history"
	"github.com/goliatone/diaryx-sync/internal/logging"
	"github.com/goliatone/diaryx-sync/internal/materialize"
	"github.com/goliatone/diaryx-sync/internal/store"
	"github.com/goliatone/diaryx-sync/internal/validate"
	"github.com/goliatone/diaryx-sync/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

var (
	_ command.Commander[CommitCommand]          = (*CommitHandler)(nil)
	_ command.Commander[RebuildCommand]         = (*RebuildHandler)(nil)
	_ command.Commander[ImportDirectoryCommand] = (*ImportDirectoryHandler)(nil)
)

// Runtime bundles the in-memory CRDT state and on-disk stores a single
// workspace's commands operate against: the resident Workspace/Body CRDTs,
// the Update Store that persists their operations, the History Store
// commits land in, and the Health Tracker whose consecutive-failure count
// must survive across commits for spec.md §4.9's self-healing rule to work.
type Runtime struct {
	Store     store.Store
	History   *history.Store
	Workspace *crdt.Workspace
	Bodies    *crdt.BodyManager
	Tracker   *validate.HealthTracker
}

// CommitHandler runs the Commit Pipeline for a workspace.
type CommitHandler struct {
	rt     *Runtime
	logger interfaces.Logger
	inner  *commands.Handler[CommitCommand]
}

// NewCommitHandler creates a handler bound to rt.
func NewCommitHandler(rt *Runtime, logger interfaces.Logger) *CommitHandler {
	h := &CommitHandler{rt: rt, logger: commands.EnsureLogger(logger)}
	h.inner = commands.NewHandler[CommitCommand](h.execute,
		commands.WithLogger[CommitCommand](h.logger),
		commands.WithOperation[CommitCommand]("workspace.commit"),
		commands.WithMessageFields[CommitCommand](func(msg CommitCommand) map[string]any {
			return map[string]any{"workspace_id": msg.WorkspaceID}
		}),
	)
	return h
}

// Execute satisfies command.Commander[CommitCommand].
func (h *CommitHandler) Execute(ctx context.Context, msg CommitCommand) error {
	return h.inner.Execute(ctx, msg)
}

func (h *CommitHandler) execute(ctx context.Context, msg CommitCommand) error {
	opts := commit.Options{
		Message:        msg.Message,
		KeepUpdates:    msg.KeepUpdates,
		SkipValidation: msg.SkipValidation,
	}
	if strings.TrimSpace(msg.AuthorName) != "" || strings.TrimSpace(msg.AuthorEmail) != "" {
		opts.Author = history.Author{Name: msg.AuthorName, Email: msg.AuthorEmail}
	}

	result, err := commit.Run(ctx, h.rt.Store, h.rt.History, h.rt.Workspace, h.rt.Bodies, msg.WorkspaceID, opts, h.rt.Tracker)
	if err != nil {
		return err
	}
	logging.WithFields(h.logger, map[string]any{
		"commit_id":  result.CommitID.String(),
		"file_count": result.FileCount,
	}).Info("workspace.command.commit.completed")
	return nil
}

// CLIHandler exposes the handler for CLI registration.
func (h *CommitHandler) CLIHandler() any { return h }

// CLIOptions describes the CLI metadata for workspace commit.
func (h *CommitHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"workspace", "commit"},
		Group:       "workspace",
		Description: "Run the commit pipeline for a workspace",
	}
}

// RebuildHandler replays a committed history tree back into the resident
// CRDTs.
type RebuildHandler struct {
	rt     *Runtime
	logger interfaces.Logger
	inner  *commands.Handler[RebuildCommand]
}

// NewRebuildHandler creates a handler bound to rt.
func NewRebuildHandler(rt *Runtime, logger interfaces.Logger) *RebuildHandler {
	h := &RebuildHandler{rt: rt, logger: commands.EnsureLogger(logger)}
	h.inner = commands.NewHandler[RebuildCommand](h.execute,
		commands.WithLogger[RebuildCommand](h.logger),
		commands.WithOperation[RebuildCommand]("workspace.rebuild"),
		commands.WithMessageFields[RebuildCommand](func(msg RebuildCommand) map[string]any {
			return map[string]any{"workspace_id": msg.WorkspaceID, "commit_hash": msg.CommitHash}
		}),
	)
	return h
}

// Execute satisfies command.Commander[RebuildCommand].
func (h *RebuildHandler) Execute(ctx context.Context, msg RebuildCommand) error {
	return h.inner.Execute(ctx, msg)
}

func (h *RebuildHandler) execute(ctx context.Context, msg RebuildCommand) error {
	var commitID *history.Hash
	if strings.TrimSpace(msg.CommitHash) != "" {
		hash, err := history.ParseHash(msg.CommitHash)
		if err != nil {
			return err
		}
		commitID = &hash
	}

	count, err := commit.Rebuild(ctx, h.rt.History, h.rt.Store, msg.WorkspaceID, commitID)
	if err != nil {
		return err
	}
	logging.WithFields(h.logger, map[string]any{"file_count": count}).Info("workspace.command.rebuild.completed")
	return nil
}

// CLIHandler exposes the handler for CLI registration.
func (h *RebuildHandler) CLIHandler() any { return h }

// CLIOptions describes the CLI metadata for workspace rebuild.
func (h *RebuildHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"workspace", "rebuild"},
		Group:       "workspace",
		Description: "Rebuild a workspace's CRDTs from its commit history",
	}
}

// ImportDirectoryHandler bootstraps a workspace's CRDTs from an existing
// directory of frontmatter+body markdown files. This is a minimal
// filesystem importer only -- Day One/email archive import from
// original_source is explicitly out of scope for this module (see
// DESIGN.md).
type ImportDirectoryHandler struct {
	rt     *Runtime
	logger interfaces.Logger
	inner  *commands.Handler[ImportDirectoryCommand]
}

// NewImportDirectoryHandler creates a handler bound to rt.
func NewImportDirectoryHandler(rt *Runtime, logger interfaces.Logger) *ImportDirectoryHandler {
	h := &ImportDirectoryHandler{rt: rt, logger: commands.EnsureLogger(logger)}
	h.inner = commands.NewHandler[ImportDirectoryCommand](h.execute,
		commands.WithLogger[ImportDirectoryCommand](h.logger),
		commands.WithOperation[ImportDirectoryCommand]("workspace.import_directory"),
		commands.WithMessageFields[ImportDirectoryCommand](func(msg ImportDirectoryCommand) map[string]any {
			return map[string]any{"workspace_id": msg.WorkspaceID, "directory": msg.Directory}
		}),
	)
	return h
}

// Execute satisfies command.Commander[ImportDirectoryCommand].
func (h *ImportDirectoryHandler) Execute(ctx context.Context, msg ImportDirectoryCommand) error {
	return h.inner.Execute(ctx, msg)
}

func (h *ImportDirectoryHandler) execute(ctx context.Context, msg ImportDirectoryCommand) error {
	deviceID := msg.DeviceID
	if deviceID == "" {
		deviceID = "import"
	}

	count, err := importDirectory(ctx, h.rt, msg.WorkspaceID, msg.Directory, deviceID)
	if err != nil {
		return err
	}
	logging.WithFields(h.logger, map[string]any{"file_count": count}).Info("workspace.command.import_directory.completed")
	return nil
}

// CLIHandler exposes the handler for CLI registration.
func (h *ImportDirectoryHandler) CLIHandler() any { return h }

// CLIOptions describes the CLI metadata for workspace import.
func (h *ImportDirectoryHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"workspace", "import"},
		Group:       "workspace",
		Description: "Import an existing directory of markdown files into a workspace",
	}
}

// importDirectory walks dir for *.md files, parses each one's frontmatter
// and body, and populates ws/bodies keyed by workspace-relative path --
// following the same path-as-doc-id convention as commit.Rebuild's
// walkTree, which IsLegacyPathKey recognises as a supported key shape.
// The resulting snapshots are saved to st so a subsequent commit sees
// them.
func importDirectory(ctx context.Context, rt *Runtime, workspaceID, dir, deviceID string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return diaryxerrors.IO(err, "resolve relative path for "+path)
		}
		relPath = filepath.ToSlash(relPath)

		raw, err := os.ReadFile(path)
		if err != nil {
			return diaryxerrors.IO(err, "read "+path)
		}
		fm, body, err := materialize.ParseFrontMatter(raw)
		if err != nil {
			return diaryxerrors.Parse(err, "parse frontmatter at "+relPath)
		}

		meta := frontMatterToMetadata(fm, relPath)
		modifiedAt := fm.Updated
		if modifiedAt == 0 {
			modifiedAt = time.Now().UnixMilli()
		}
		rt.Workspace.SetFile(relPath, meta, modifiedAt)

		bodyText := strings.TrimPrefix(string(body), "\n")
		rt.Bodies.GetOrCreate(crdt.BodyDocName(workspaceID, relPath)).SetBody(bodyText, modifiedAt)

		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	if err := rt.Store.SaveDoc(ctx, rt.Workspace.Name(), rt.Workspace.EncodeStateAsUpdate()); err != nil {
		return 0, err
	}
	for _, name := range rt.Bodies.Names() {
		b := rt.Bodies.GetOrCreate(name)
		if err := rt.Store.SaveDoc(ctx, b.Name(), b.EncodeStateAsUpdate()); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// frontMatterToMetadata reconstructs a FileMetadata from a parsed
// FrontMatter, resolving part_of/contents link syntax to canonical paths
// via the §6 link parser. Mirrors internal/commit/rebuild.go's function of
// the same name, since both read the identical on-disk shape back into
// CRDT metadata.
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
