package diaryx_test

import (
	"testing"

	"github.com/goliatone/diaryx-sync"
)

func TestNewBuildsModuleWithDefaults(t *testing.T) {
	cfg := diaryx.DefaultConfig()
	cfg.WorkspaceID = "ws"
	cfg.History.RepoPath = t.TempDir()

	m, err := diaryx.New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if m.Store() == nil {
		t.Fatalf("expected a store")
	}
	if m.History() == nil {
		t.Fatalf("expected a history store when Features.History is set")
	}
	if m.Workspace() == nil || m.Bodies() == nil {
		t.Fatalf("expected resident workspace/body CRDTs")
	}
	if m.SyncServer() != nil {
		t.Fatalf("expected no sync server when SyncServer.Enabled is false")
	}
}

func TestNewEnablesSyncServerWhenConfigured(t *testing.T) {
	cfg := diaryx.DefaultConfig()
	cfg.WorkspaceID = "ws"
	cfg.History.RepoPath = t.TempDir()
	cfg.SyncServer.Enabled = true
	cfg.SyncServer.ListenAddr = ":0"

	m, err := diaryx.New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if m.SyncServer() == nil {
		t.Fatalf("expected a sync server when SyncServer.Enabled is true")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := diaryx.DefaultConfig()
	cfg.WorkspaceID = ""

	if _, err := diaryx.New(cfg); err == nil {
		t.Fatalf("expected validation error for empty workspace id")
	}
}

func TestCommitHandlerIsBoundToModuleRuntime(t *testing.T) {
	cfg := diaryx.DefaultConfig()
	cfg.WorkspaceID = "ws"
	cfg.History.RepoPath = t.TempDir()

	m, err := diaryx.New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	handler := m.CommitHandler()
	if handler == nil {
		t.Fatalf("expected a non-nil commit handler")
	}
}
