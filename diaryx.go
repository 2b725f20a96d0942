// Package diaryx is the top level façade over the workspace synchronization
// engine, grounded on the teacher's cms.go Module wrapping a DI container:
// this module has no DI container (internal/di was dropped, see DESIGN.md),
// so Module constructs its components directly from a runtimeconfig.Config
// instead of resolving them through a container.
package diaryx

import (
	"github.com/goliatone/diaryx-sync/internal/crdt"
	wscmd "github.com/goliatone/diaryx-sync/internal/commands/workspace"
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
	"github.com/goliatone/diaryx-sync/internal/history"
	"github.com/goliatone/diaryx-sync/internal/logging"
	"github.com/goliatone/diaryx-sync/internal/logging/gologger"
	"github.com/goliatone/diaryx-sync/internal/runtimeconfig"
	"github.com/goliatone/diaryx-sync/internal/store"
	"github.com/goliatone/diaryx-sync/internal/syncserver"
	"github.com/goliatone/diaryx-sync/internal/validate"
	"github.com/goliatone/diaryx-sync/pkg/interfaces"
)

// Config re-exports the runtime configuration type so callers need only
// import this package.
type Config = runtimeconfig.Config

// DefaultConfig returns sensible defaults for a single-user local workspace.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// Module is the top level workspace runtime façade: the resident Workspace
// and Body CRDTs, the Update Store and History Store backing them, the
// Health Tracker that carries consecutive-failure state across commits, and
// the optional Sync Server relaying updates to other devices.
type Module struct {
	cfg     Config
	logger  interfaces.Logger
	store   store.Store
	history *history.Store
	ws      *crdt.Workspace
	bodies  *crdt.BodyManager
	tracker *validate.HealthTracker
	sync    *syncserver.Server
}

// New constructs a Module from cfg, validating it first.
func New(cfg Config) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	st, err := buildStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	var hist *history.Store
	if cfg.Features.History {
		kind := history.Standard
		if cfg.History.Kind == "bare" {
			kind = history.Bare
		}
		hist, err = history.Open(cfg.History.RepoPath, kind)
		if err != nil {
			hist, err = history.Init(cfg.History.RepoPath, kind)
			if err != nil {
				return nil, err
			}
		}
	}

	ws := crdt.NewWorkspace(crdt.WorkspaceDocName(cfg.WorkspaceID), cfg.DeviceID, nil)
	bodies := crdt.NewBodyManager(cfg.DeviceID)
	tracker := validate.NewHealthTracker()

	m := &Module{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		history: hist,
		ws:      ws,
		bodies:  bodies,
		tracker: tracker,
	}

	if cfg.Features.Sync && cfg.SyncServer.Enabled {
		m.sync = syncserver.New(st, syncserver.NewTokenAuthenticator(nil, cfg.SyncServer.AllowGuests), logger, cfg.DeviceID)
	}

	return m, nil
}

func buildLogger(cfg Config) (interfaces.Logger, error) {
	if !cfg.Features.Logger {
		return logging.NoOp(), nil
	}
	switch cfg.Logging.Provider {
	case "gologger", "":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.AddSource,
			Focus:     cfg.Logging.Focus,
		})
		if err != nil {
			return nil, err
		}
		return provider.GetLogger("diaryx"), nil
	case "console":
		provider, err := gologger.NewProvider(gologger.Config{Level: cfg.Logging.Level, Format: "console"})
		if err != nil {
			return nil, err
		}
		return provider.GetLogger("diaryx"), nil
	default:
		return nil, diaryxerrors.Unsupported(nil, "unknown logging provider: "+cfg.Logging.Provider)
	}
}

func buildStore(cfg runtimeconfig.StoreConfig) (store.Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "bun":
		return nil, diaryxerrors.Unsupported(nil, "bun store wiring lives in cmd/diaryxd and cmd/diaryx; Module.New only supports the memory provider")
	default:
		return nil, diaryxerrors.Unsupported(nil, "unknown store provider: "+cfg.Provider)
	}
}

// Store returns the Update Store backing this module's CRDTs.
func (m *Module) Store() store.Store { return m.store }

// History returns the History Store, or nil when the history feature is
// disabled.
func (m *Module) History() *history.Store { return m.history }

// Workspace returns the resident Workspace CRDT.
func (m *Module) Workspace() *crdt.Workspace { return m.ws }

// Bodies returns the resident Body CRDT manager.
func (m *Module) Bodies() *crdt.BodyManager { return m.bodies }

// HealthTracker returns the Validator & Health Tracker.
func (m *Module) HealthTracker() *validate.HealthTracker { return m.tracker }

// SyncServer returns the Sync Server, or nil when sync is disabled.
func (m *Module) SyncServer() *syncserver.Server { return m.sync }

// Logger returns the module's configured logger.
func (m *Module) Logger() interfaces.Logger { return m.logger }

func (m *Module) runtime() *wscmd.Runtime {
	return &wscmd.Runtime{
		Store:     m.store,
		History:   m.history,
		Workspace: m.ws,
		Bodies:    m.bodies,
		Tracker:   m.tracker,
	}
}

// CommitHandler returns a commit-pipeline handler bound to this module.
func (m *Module) CommitHandler() *wscmd.CommitHandler {
	return wscmd.NewCommitHandler(m.runtime(), m.logger)
}

// RebuildHandler returns a rebuild handler bound to this module.
func (m *Module) RebuildHandler() *wscmd.RebuildHandler {
	return wscmd.NewRebuildHandler(m.runtime(), m.logger)
}

// ImportDirectoryHandler returns a filesystem-import handler bound to this
// module.
func (m *Module) ImportDirectoryHandler() *wscmd.ImportDirectoryHandler {
	return wscmd.NewImportDirectoryHandler(m.runtime(), m.logger)
}
