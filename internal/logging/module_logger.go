package logging

import (
	"context"
	"strings"

	"github.com/goliatone/diaryx-sync/pkg/interfaces"
)

const (
	rootModule        = "diaryx"
	storeModule       = "diaryx.store"
	syncServerModule  = "diaryx.syncserver"
	materializeModule = "diaryx.materialize"
	commitModule      = "diaryx.commit"
	historyModule     = "diaryx.history"
	validateModule    = "diaryx.validate"
)

const (
	fieldDocPath    = "doc_path"
	fieldWorkspace  = "workspace_id"
	fieldSyncAction = "sync_action"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The returned logger attaches
// the module identifier as structured context so downstream entries can be
// filtered predictably.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	if fieldsLogger, ok := logger.(interfaces.FieldsLogger); ok {
		return fieldsLogger.WithFields(map[string]any{
			"module": module,
		})
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// StoreLogger returns the logger namespace reserved for the update store.
func StoreLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, storeModule)
}

// SyncServerLogger returns the logger namespace reserved for the sync server.
func SyncServerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, syncServerModule)
}

// MaterializeLogger returns the logger namespace reserved for frontmatter materialization.
func MaterializeLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, materializeModule)
}

// CommitLogger returns the logger namespace reserved for the commit pipeline.
func CommitLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, commitModule)
}

// HistoryLogger returns the logger namespace reserved for the history store.
func HistoryLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, historyModule)
}

// ValidateLogger returns the logger namespace reserved for the health tracker.
func ValidateLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, validateModule)
}

// WithDocContext enriches the provided logger with common document-level fields such as
// workspace id, document path, and sync action. Empty values are ignored.
func WithDocContext(logger interfaces.Logger, workspaceID, path, action string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(workspaceID); trimmed != "" {
		fields[fieldWorkspace] = trimmed
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		fields[fieldDocPath] = trimmed
	}
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		fields[fieldSyncAction] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every log entry. It satisfies the Logger
// contract so services can safely operate when logging is disabled.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
