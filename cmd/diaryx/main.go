// Command diaryx is the single-binary workspace CLI: init, commit, rebuild,
// and import subcommands, parsed with alecthomas/kong the way
// SPEC_FULL.md's domain stack section commits this module to, rather than
// the teacher's one-flag-set-per-binary convention (see cmd/diaryxd, which
// keeps that convention for the standalone sync server).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	wscmd "github.com/goliatone/diaryx-sync/internal/commands/workspace"
	"github.com/goliatone/diaryx-sync/internal/history"
	"github.com/goliatone/diaryx-sync/internal/logging"
	"github.com/goliatone/diaryx-sync/internal/logging/gologger"
	"github.com/goliatone/diaryx-sync/pkg/interfaces"
)

// CLI is kong's root command tree.
var CLI struct {
	Store           string `help:"Update store provider: memory or bun." default:"memory" enum:"memory,bun"`
	StoreDSN        string `help:"sqlite DSN when --store=bun." name:"store-dsn" default:"file:diaryx.db?cache=shared"`
	HistoryPath     string `help:"Path to the workspace's history (git) repo." name:"history-path" default:".diaryx/history"`
	HistoryKind     string `help:"History repo layout: standard or bare." name:"history-kind" default:"standard" enum:"standard,bare"`
	DeviceID        string `help:"This device's CRDT device id." default:"cli"`
	LogLevel        string `help:"Log level." name:"log-level" default:"info"`

	Init struct {
		WorkspaceID string `arg:"" help:"Workspace id to initialise."`
	} `cmd:"" help:"Initialise a new workspace's history store."`

	Commit struct {
		WorkspaceID    string `arg:"" help:"Workspace id."`
		Message        string `help:"Commit message." short:"m"`
		AuthorName     string `help:"Commit author name." name:"author-name"`
		AuthorEmail    string `help:"Commit author email." name:"author-email"`
		KeepUpdates    int    `help:"Updates to retain per doc after compaction." name:"keep-updates"`
		SkipValidation bool   `help:"Skip the pre-commit sanity pass." name:"skip-validation"`
	} `cmd:"" help:"Run the commit pipeline for a workspace."`

	Rebuild struct {
		WorkspaceID string `arg:"" help:"Workspace id."`
		CommitHash  string `help:"Commit to rebuild from (defaults to HEAD)." name:"commit"`
	} `cmd:"" help:"Rebuild a workspace's CRDTs from its commit history."`

	Import struct {
		WorkspaceID string `arg:"" help:"Workspace id."`
		Directory   string `arg:"" help:"Directory of markdown files to import."`
	} `cmd:"" help:"Import an existing directory of markdown files into a workspace."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("diaryx"),
		kong.Description("Diaryx workspace synchronization CLI"),
	)

	logger, err := buildLogger(CLI.LogLevel)
	if err != nil {
		ctx.FatalIfErrorf(err)
	}

	kind := parseHistoryKind(CLI.HistoryKind)

	switch ctx.Command() {
	case "init <workspace-id>":
		ctx.FatalIfErrorf(runInit(logger, kind))
	case "commit <workspace-id>":
		ctx.FatalIfErrorf(runCommit(logger, kind))
	case "rebuild <workspace-id>":
		ctx.FatalIfErrorf(runRebuild(logger, kind))
	case "import <workspace-id> <directory>":
		ctx.FatalIfErrorf(runImport(logger, kind))
	default:
		ctx.FatalIfErrorf(fmt.Errorf("unknown command %q", ctx.Command()))
	}
}

func buildLogger(level string) (interfaces.Logger, error) {
	provider, err := gologger.NewProvider(gologger.Config{Level: level, Format: "console"})
	if err != nil {
		return nil, err
	}
	return provider.GetLogger("diaryx"), nil
}

func parseHistoryKind(kind string) history.RepoKind {
	if kind == "bare" {
		return history.Bare
	}
	return history.Standard
}

func runInit(logger interfaces.Logger, kind history.RepoKind) error {
	hist, err := history.Init(CLI.HistoryPath, kind)
	if err != nil {
		return err
	}
	_ = hist
	logging.WithFields(logger, map[string]any{
		"workspace_id": CLI.Init.WorkspaceID,
		"history_path": CLI.HistoryPath,
	}).Info("workspace initialised")
	fmt.Fprintf(os.Stdout, "initialised workspace %q at %s\n", CLI.Init.WorkspaceID, CLI.HistoryPath)
	return nil
}

func runCommit(logger interfaces.Logger, kind history.RepoKind) error {
	ctx := context.Background()
	st, err := buildStore(CLI.Store, CLI.StoreDSN)
	if err != nil {
		return err
	}
	hist, err := openHistory(CLI.HistoryPath, kind)
	if err != nil {
		return err
	}
	rt, err := loadRuntime(ctx, st, hist, CLI.Commit.WorkspaceID, CLI.DeviceID, CLI.HistoryPath, kind)
	if err != nil {
		return err
	}

	handler := wscmd.NewCommitHandler(rt, logger)
	return handler.Execute(ctx, wscmd.CommitCommand{
		WorkspaceID:    CLI.Commit.WorkspaceID,
		Message:        CLI.Commit.Message,
		AuthorName:     CLI.Commit.AuthorName,
		AuthorEmail:    CLI.Commit.AuthorEmail,
		KeepUpdates:    CLI.Commit.KeepUpdates,
		SkipValidation: CLI.Commit.SkipValidation,
	})
}

func runRebuild(logger interfaces.Logger, kind history.RepoKind) error {
	ctx := context.Background()
	st, err := buildStore(CLI.Store, CLI.StoreDSN)
	if err != nil {
		return err
	}
	hist, err := openHistory(CLI.HistoryPath, kind)
	if err != nil {
		return err
	}
	rt, err := loadRuntime(ctx, st, hist, CLI.Rebuild.WorkspaceID, CLI.DeviceID, CLI.HistoryPath, kind)
	if err != nil {
		return err
	}

	handler := wscmd.NewRebuildHandler(rt, logger)
	return handler.Execute(ctx, wscmd.RebuildCommand{
		WorkspaceID: CLI.Rebuild.WorkspaceID,
		CommitHash:  CLI.Rebuild.CommitHash,
	})
}

func runImport(logger interfaces.Logger, kind history.RepoKind) error {
	ctx := context.Background()
	st, err := buildStore(CLI.Store, CLI.StoreDSN)
	if err != nil {
		return err
	}
	hist, err := openHistory(CLI.HistoryPath, kind)
	if err != nil {
		return err
	}
	rt, err := loadRuntime(ctx, st, hist, CLI.Import.WorkspaceID, CLI.DeviceID, CLI.HistoryPath, kind)
	if err != nil {
		return err
	}

	handler := wscmd.NewImportDirectoryHandler(rt, logger)
	return handler.Execute(ctx, wscmd.ImportDirectoryCommand{
		WorkspaceID: CLI.Import.WorkspaceID,
		Directory:   CLI.Import.Directory,
		DeviceID:    CLI.DeviceID,
	})
}
