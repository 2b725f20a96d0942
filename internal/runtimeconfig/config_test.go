package runtimeconfig_test

import (
	"errors"
	"testing"

	"github.com/goliatone/diaryx-sync/internal/runtimeconfig"
)

func TestConfigValidate_DefaultIsValid(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate_RequiresWorkspaceID(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.WorkspaceID = "  "

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrWorkspaceIDRequired) {
		t.Fatalf("expected ErrWorkspaceIDRequired, got %v", err)
	}
}

func TestConfigValidate_RequiresWorkspacePath(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.WorkspacePath = ""

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrWorkspacePathRequired) {
		t.Fatalf("expected ErrWorkspacePathRequired, got %v", err)
	}
}

func TestConfigValidate_RejectsUnknownStoreProvider(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Store.Provider = "redis"

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrStoreProviderUnknown) {
		t.Fatalf("expected ErrStoreProviderUnknown, got %v", err)
	}
}

func TestConfigValidate_BunStoreRequiresDSN(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Store.Provider = "bun"
	cfg.Store.DSN = ""

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrStoreDSNRequiredForBun) {
		t.Fatalf("expected ErrStoreDSNRequiredForBun, got %v", err)
	}
}

func TestConfigValidate_BunStoreWithDSNIsValid(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Store.Provider = "bun"
	cfg.Store.DSN = "file:diaryx.db"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate_RequiresHistoryRepoPathWhenFeatureEnabled(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.History = true
	cfg.History.RepoPath = " "

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrHistoryRepoPathRequired) {
		t.Fatalf("expected ErrHistoryRepoPathRequired, got %v", err)
	}
}

func TestConfigValidate_RejectsUnknownHistoryKind(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.History = true
	cfg.History.Kind = "bare-metal"

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrHistoryKindUnknown) {
		t.Fatalf("expected ErrHistoryKindUnknown, got %v", err)
	}
}

func TestConfigValidate_SkipsHistoryChecksWhenFeatureDisabled(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.History = false
	cfg.History.RepoPath = ""
	cfg.History.Kind = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate_RequiresListenAddrWhenSyncServerEnabled(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.SyncServer.Enabled = true
	cfg.SyncServer.ListenAddr = ""

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrSyncServerListenAddrRequired) {
		t.Fatalf("expected ErrSyncServerListenAddrRequired, got %v", err)
	}
}

func TestConfigValidate_RejectsLowRebuildThreshold(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Commit.RebuildThreshold = 0

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrCommitRebuildThresholdLow) {
		t.Fatalf("expected ErrCommitRebuildThresholdLow, got %v", err)
	}
}

func TestConfigValidate_RejectsNegativeKeepUpdates(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Commit.KeepUpdates = -1

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrCommitKeepUpdatesNegative) {
		t.Fatalf("expected ErrCommitKeepUpdatesNegative, got %v", err)
	}
}

func TestConfigValidate_RequiresLoggingProviderWhenFeatureEnabled(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Logger = true
	cfg.Logging.Provider = ""

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrLoggingProviderRequired) {
		t.Fatalf("expected ErrLoggingProviderRequired, got %v", err)
	}
}

func TestConfigValidate_RejectsUnknownLoggingProvider(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Logger = true
	cfg.Logging.Provider = "syslog"

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrLoggingProviderUnknown) {
		t.Fatalf("expected ErrLoggingProviderUnknown, got %v", err)
	}
}

func TestConfigValidate_RejectsInvalidLoggingFormat(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Logger = true
	cfg.Logging.Provider = "gologger"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if !errors.Is(err, runtimeconfig.ErrLoggingFormatInvalid) {
		t.Fatalf("expected ErrLoggingFormatInvalid, got %v", err)
	}
}

func TestConfigValidate_SkipsLoggingChecksWhenFeatureDisabled(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Logger = false
	cfg.Logging.Provider = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}
