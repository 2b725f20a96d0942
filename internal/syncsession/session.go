// Package syncsession implements the client-side Sync Session state
// machine from spec.md §4.6: a pure, transport-agnostic state machine whose
// Process method consumes one event at a time and returns a list of
// actions for the platform layer to execute. It never touches a network or
// timer itself, matching §9's "the core never touches a runtime directly".
package syncsession

import (
	"encoding/base64"
	"encoding/json"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/syncproto"
)

// State is the session's current lifecycle position.
type State int

const (
	AwaitingConnect State = iota
	WaitingForHandshake
	Active
)

func (s State) String() string {
	switch s {
	case AwaitingConnect:
		return "AwaitingConnect"
	case WaitingForHandshake:
		return "WaitingForHandshake"
	case Active:
		return "Active"
	default:
		return "Unknown"
	}
}

// SyncStatus is reported via StatusChanged actions.
type SyncStatus int

const (
	StatusConnected SyncStatus = iota
	StatusSyncing
	StatusSynced
	StatusDisconnected
	StatusError
)

// EventKind tags the union-typed Event passed to Process.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventText
	EventBinary
	EventSnapshotImported
	EventLocalUpdate
)

// Event is one input to the session state machine. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind EventKind
	Text string
	Data []byte
	// LocalUpdate fields.
	Doc   string
	Bytes []byte
}

// ActionKind tags the union-typed Action returned by Process.
type ActionKind int

const (
	ActionSendFrame ActionKind = iota
	ActionSendText
	ActionRequestSnapshotDownload
	ActionStatusChanged
	ActionFilesChanged
	ActionBodyChanged
	ActionProgress
	ActionLogPeerEvent
)

// Action is one output instruction for the platform layer to execute.
type Action struct {
	Kind   ActionKind
	Frame  []byte
	Text   string
	Status SyncStatus
	Path   string
	// Update carries the raw CRDT update bytes for ActionFilesChanged /
	// ActionBodyChanged, which the platform layer applies to its resident
	// CRDT handle for Path.
	Update []byte
	// Progress fields.
	Current int
	Total   int
	Message string
}

// fileManifestMessage mirrors the text control frame's file_manifest shape.
type fileManifestMessage struct {
	Type        string `json:"type"`
	ClientIsNew bool   `json:"client_is_new"`
}

type crdtStateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type progressMessage struct {
	Type    string `json:"type"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

type syncCompleteMessage struct {
	Type        string `json:"type"`
	FilesSynced int    `json:"files_synced"`
}

// controlEnvelope is decoded first to discriminate the text frame's type
// before unmarshaling the full shape.
type controlEnvelope struct {
	Type string `json:"type"`
}

// Session is the per-connection client state machine.
type Session struct {
	state       State
	workspaceID string
	knownPaths  []string
}

// New creates a session in AwaitingConnect for the given workspace.
func New(workspaceID string) *Session {
	return &Session{state: AwaitingConnect, workspaceID: workspaceID}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// SetKnownPaths records the file paths the WaitingForHandshake step should
// request body-doc sync for once the workspace CRDT state arrives.
func (s *Session) SetKnownPaths(paths []string) { s.knownPaths = paths }

// Process consumes one event and returns the actions the platform layer
// must perform, per the table in spec.md §4.6.
func (s *Session) Process(ev Event) []Action {
	if ev.Kind == EventDisconnected {
		s.state = AwaitingConnect
		return []Action{{Kind: ActionStatusChanged, Status: StatusDisconnected}}
	}

	switch s.state {
	case AwaitingConnect:
		return s.processAwaitingConnect(ev)
	case WaitingForHandshake:
		return s.processWaitingForHandshake(ev)
	case Active:
		return s.processActive(ev)
	default:
		return nil
	}
}

func (s *Session) processAwaitingConnect(ev Event) []Action {
	if ev.Kind != EventConnected {
		return nil
	}
	s.state = WaitingForHandshake
	frame := syncproto.Frame(crdt.WorkspaceDocName(s.workspaceID), syncproto.EncodeSyncStep1(nil))
	return []Action{
		{Kind: ActionSendFrame, Frame: frame},
		{Kind: ActionStatusChanged, Status: StatusConnected},
	}
}

func (s *Session) processWaitingForHandshake(ev Event) []Action {
	switch ev.Kind {
	case EventSnapshotImported:
		return []Action{{Kind: ActionSendText, Text: `{"type":"FilesReady"}`}}
	case EventBinary:
		s.state = Active
		return s.processActive(ev)
	case EventText:
		var env controlEnvelope
		if err := json.Unmarshal([]byte(ev.Text), &env); err != nil {
			return nil
		}
		switch env.Type {
		case "file_manifest":
			var msg fileManifestMessage
			if err := json.Unmarshal([]byte(ev.Text), &msg); err != nil {
				return nil
			}
			if msg.ClientIsNew {
				return []Action{{Kind: ActionRequestSnapshotDownload}}
			}
			return []Action{{Kind: ActionSendText, Text: `{"type":"FilesReady"}`}}
		case "crdt_state":
			var msg crdtStateMessage
			if err := json.Unmarshal([]byte(ev.Text), &msg); err != nil {
				return nil
			}
			return s.applyHandshakeState(msg.State)
		}
	}
	return nil
}

func (s *Session) applyHandshakeState(encodedState string) []Action {
	s.state = Active
	actions := []Action{{Kind: ActionStatusChanged, Status: StatusSyncing}}

	stateBytes, err := base64.StdEncoding.DecodeString(encodedState)
	if err == nil {
		actions = append(actions, Action{
			Kind:   ActionFilesChanged,
			Path:   crdt.WorkspaceDocName(s.workspaceID),
			Update: stateBytes,
		})
	}

	total := len(s.knownPaths)
	for i, path := range s.knownPaths {
		bodyDoc := crdt.BodyDocName(s.workspaceID, path)
		frame := syncproto.Frame(bodyDoc, syncproto.EncodeSyncStep1(nil))
		actions = append(actions, Action{Kind: ActionSendFrame, Frame: frame})
		actions = append(actions, Action{Kind: ActionProgress, Current: i + 1, Total: total})
	}

	return actions
}

func (s *Session) processActive(ev Event) []Action {
	switch ev.Kind {
	case EventBinary:
		doc, msg, err := syncproto.Unframe(ev.Data)
		if err != nil {
			return nil
		}
		if doc == crdt.WorkspaceDocName(s.workspaceID) {
			return []Action{{Kind: ActionFilesChanged, Path: doc, Update: msg}}
		}
		return []Action{{Kind: ActionBodyChanged, Path: doc, Update: msg}}
	case EventText:
		var env controlEnvelope
		if err := json.Unmarshal([]byte(ev.Text), &env); err != nil {
			return []Action{{Kind: ActionLogPeerEvent, Text: ev.Text}}
		}
		switch env.Type {
		case "progress":
			var msg progressMessage
			if err := json.Unmarshal([]byte(ev.Text), &msg); err != nil {
				return nil
			}
			return []Action{{Kind: ActionProgress, Current: msg.Current, Total: msg.Total}}
		case "sync_complete":
			var msg syncCompleteMessage
			if err := json.Unmarshal([]byte(ev.Text), &msg); err != nil {
				return nil
			}
			return []Action{{Kind: ActionStatusChanged, Status: StatusSynced}}
		default:
			return []Action{{Kind: ActionLogPeerEvent, Text: ev.Text}}
		}
	case EventLocalUpdate:
		frame := syncproto.Frame(ev.Doc, syncproto.EncodeUpdate(ev.Bytes))
		return []Action{{Kind: ActionSendFrame, Frame: frame}}
	}
	return nil
}
