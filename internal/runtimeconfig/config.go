// Package runtimeconfig aggregates the Diaryx sync engine's runtime
// configuration, adapted from the teacher's runtimeconfig.Config /
// DefaultConfig() / per-field sentinel-error Validate() pattern. Struct
// validation is delegated to go-ozzo/ozzo-validation/v4 wherever a rule
// fits, exactly as the rest of this module's command messages already do
// (see internal/commands/workspace), rather than hand-rolled string
// comparisons.
package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var ErrWorkspaceIDRequired = errors.New("diaryx config: workspace id is required")
var ErrWorkspacePathRequired = errors.New("diaryx config: workspace path is required")
var ErrDeviceIDRequired = errors.New("diaryx config: device id is required")
var ErrStoreProviderRequired = errors.New("diaryx config: update store provider is required")
var ErrStoreProviderUnknown = errors.New("diaryx config: update store provider is invalid")
var ErrStoreDSNRequiredForBun = errors.New("diaryx config: update store dsn is required for the bun provider")
var ErrHistoryRepoPathRequired = errors.New("diaryx config: history repo path is required")
var ErrHistoryKindUnknown = errors.New("diaryx config: history repo kind is invalid")
var ErrSyncServerListenAddrRequired = errors.New("diaryx config: sync server listen address is required when enabled")
var ErrCommitRebuildThresholdLow = errors.New("diaryx config: commit rebuild threshold must be at least 1")
var ErrCommitKeepUpdatesNegative = errors.New("diaryx config: commit keep_updates must be zero or positive")
var ErrLoggingProviderRequired = errors.New("diaryx config: logging provider is required when logging feature is enabled")
var ErrLoggingProviderUnknown = errors.New("diaryx config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("diaryx config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("diaryx config: logging format is invalid")

// Config aggregates every adjustable setting of a running Diaryx
// workspace: where it lives on disk, how its Update Store and History
// Store are backed, whether it serves a sync endpoint, and how commits
// and logging behave.
type Config struct {
	WorkspaceID   string
	WorkspacePath string
	DeviceID      string
	Store         StoreConfig
	History       HistoryConfig
	SyncServer    SyncServerConfig
	Commit        CommitConfig
	Logging       LoggingConfig
	Features      Features
}

// StoreConfig selects the Update Store backend.
type StoreConfig struct {
	Provider string // "memory" or "bun"
	DSN      string // sqlite DSN, required when Provider == "bun"
}

// HistoryConfig selects the content-addressed History Store's on-disk
// layout.
type HistoryConfig struct {
	RepoPath string
	Kind     string // "standard" or "bare"
}

// SyncServerConfig configures the optional sync websocket endpoint.
type SyncServerConfig struct {
	Enabled     bool
	ListenAddr  string
	AllowGuests bool
}

// CommitConfig configures the Commit Pipeline's compaction and
// self-healing behaviour.
type CommitConfig struct {
	KeepUpdates      int
	RebuildThreshold int
}

// LoggingConfig captures provider-specific options for runtime logging,
// unchanged in shape from the teacher's runtimeconfig.LoggingConfig.
type LoggingConfig struct {
	Provider  string
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// Features toggles the sync engine's top-level subsystems, matching
// SPEC_FULL.md §9's Features.Sync / Features.History / Features.Materialize.
type Features struct {
	Sync        bool
	History     bool
	Materialize bool
	Logger      bool
}

// DefaultConfig returns opinionated defaults: an in-memory update store, a
// standard (non-bare) history repo under ".diaryx/history", the sync
// server disabled, and console logging at info level.
func DefaultConfig() Config {
	return Config{
		WorkspaceID:   "default",
		WorkspacePath: ".",
		DeviceID:      "local",
		Store: StoreConfig{
			Provider: "memory",
		},
		History: HistoryConfig{
			RepoPath: ".diaryx/history",
			Kind:     "standard",
		},
		SyncServer: SyncServerConfig{
			Enabled:    false,
			ListenAddr: ":8787",
		},
		Commit: CommitConfig{
			KeepUpdates:      0,
			RebuildThreshold: 3,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		Features: Features{
			Sync:        true,
			History:     true,
			Materialize: true,
		},
	}
}

// Validate performs consistency checks across the config, returning the
// first sentinel error encountered.
func (cfg Config) Validate() error {
	if isBlank(cfg.WorkspaceID) {
		return ErrWorkspaceIDRequired
	}
	if isBlank(cfg.WorkspacePath) {
		return ErrWorkspacePathRequired
	}
	if isBlank(cfg.DeviceID) {
		return ErrDeviceIDRequired
	}

	provider := normalize(cfg.Store.Provider)
	if provider == "" {
		return ErrStoreProviderRequired
	}
	if !isSupportedStoreProvider(provider) {
		return fmt.Errorf("%w: %s", ErrStoreProviderUnknown, provider)
	}
	if provider == "bun" && isBlank(cfg.Store.DSN) {
		return ErrStoreDSNRequiredForBun
	}

	if cfg.Features.History {
		if isBlank(cfg.History.RepoPath) {
			return ErrHistoryRepoPathRequired
		}
		kind := normalize(cfg.History.Kind)
		if !isSupportedHistoryKind(kind) {
			return fmt.Errorf("%w: %s", ErrHistoryKindUnknown, kind)
		}
	}

	if cfg.Features.Sync && cfg.SyncServer.Enabled && isBlank(cfg.SyncServer.ListenAddr) {
		return ErrSyncServerListenAddrRequired
	}

	if cfg.Commit.RebuildThreshold < 1 {
		return ErrCommitRebuildThresholdLow
	}
	if cfg.Commit.KeepUpdates < 0 {
		return ErrCommitKeepUpdatesNegative
	}

	if cfg.Features.Logger {
		loggingProvider := normalize(cfg.Logging.Provider)
		if loggingProvider == "" {
			return ErrLoggingProviderRequired
		}
		if !isSupportedLoggingProvider(loggingProvider) {
			return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, loggingProvider)
		}
		if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
			return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
		}
		if loggingProvider == "gologger" {
			if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
				return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
			}
		}
	}

	return nil
}

// isBlank reports whether value fails ozzo-validation's Required rule,
// i.e. is empty after trimming whitespace.
func isBlank(value string) bool {
	return validation.Validate(value, validation.Required) != nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedStoreProvider(provider string) bool {
	return validation.Validate(provider, validation.In("memory", "bun")) == nil
}

func isSupportedHistoryKind(kind string) bool {
	return validation.Validate(kind, validation.In("standard", "bare")) == nil
}

func isSupportedLoggingProvider(provider string) bool {
	return validation.Validate(provider, validation.In("console", "gologger")) == nil
}

func isSupportedLevel(level string) bool {
	return validation.Validate(normalize(level), validation.In("trace", "debug", "info", "warn", "warning", "error", "fatal")) == nil
}

func isSupportedFormat(format string) bool {
	return validation.Validate(normalize(format), validation.In("json", "console", "pretty")) == nil
}

// CommitTimeout is the default deadline applied to a single commit
// pipeline run by the CLI and sync server alike.
const CommitTimeout = 30 * time.Second
