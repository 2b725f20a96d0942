package syncsession

import (
	"testing"

	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/syncproto"
)

func TestAwaitingConnectSendsSyncStep1(t *testing.T) {
	s := New("ws1")
	actions := s.Process(Event{Kind: EventConnected})
	if s.State() != WaitingForHandshake {
		t.Fatalf("expected WaitingForHandshake, got %s", s.State())
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d: %+v", len(actions), actions)
	}
	if actions[0].Kind != ActionSendFrame {
		t.Fatalf("expected first action to send a frame, got %+v", actions[0])
	}
	doc, msg, err := syncproto.Unframe(actions[0].Frame)
	if err != nil {
		t.Fatalf("unframe: %v", err)
	}
	if doc != crdt.WorkspaceDocName("ws1") {
		t.Fatalf("expected workspace doc name, got %q", doc)
	}
	decoded, err := syncproto.Decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SyncKind != syncproto.SyncStep1 {
		t.Fatalf("expected SyncStep1, got %v", decoded.SyncKind)
	}
	if actions[1].Kind != ActionStatusChanged || actions[1].Status != StatusConnected {
		t.Fatalf("expected StatusChanged(Connected), got %+v", actions[1])
	}
}

func TestWaitingForHandshakeFileManifestClientIsNew(t *testing.T) {
	s := New("ws1")
	s.Process(Event{Kind: EventConnected})

	actions := s.Process(Event{Kind: EventText, Text: `{"type":"file_manifest","client_is_new":true}`})
	if len(actions) != 1 || actions[0].Kind != ActionRequestSnapshotDownload {
		t.Fatalf("expected a single RequestSnapshotDownload action, got %+v", actions)
	}
	if s.State() != WaitingForHandshake {
		t.Fatalf("expected to remain in WaitingForHandshake, got %s", s.State())
	}
}

func TestWaitingForHandshakeFileManifestClientIsNotNew(t *testing.T) {
	s := New("ws1")
	s.Process(Event{Kind: EventConnected})

	actions := s.Process(Event{Kind: EventText, Text: `{"type":"file_manifest","client_is_new":false}`})
	if len(actions) != 1 || actions[0].Kind != ActionSendText || actions[0].Text != `{"type":"FilesReady"}` {
		t.Fatalf("expected FilesReady text action, got %+v", actions)
	}
}

func TestWaitingForHandshakeCrdtStateTransitionsToActive(t *testing.T) {
	s := New("ws1")
	s.Process(Event{Kind: EventConnected})
	s.SetKnownPaths([]string{"a.md", "b.md"})

	encoded := `{"type":"crdt_state","state":"aGVsbG8="}` // base64("hello")
	actions := s.Process(Event{Kind: EventText, Text: encoded})

	if s.State() != Active {
		t.Fatalf("expected Active, got %s", s.State())
	}
	if len(actions) == 0 || actions[0].Kind != ActionStatusChanged || actions[0].Status != StatusSyncing {
		t.Fatalf("expected leading StatusChanged(Syncing), got %+v", actions)
	}

	var filesChanged *Action
	var frameActions, progressActions int
	for i := range actions {
		switch actions[i].Kind {
		case ActionFilesChanged:
			filesChanged = &actions[i]
		case ActionSendFrame:
			frameActions++
		case ActionProgress:
			progressActions++
		}
	}
	if filesChanged == nil {
		t.Fatalf("expected a FilesChanged action, got %+v", actions)
	}
	if string(filesChanged.Update) != "hello" {
		t.Fatalf("expected decoded update bytes 'hello', got %q", filesChanged.Update)
	}
	if frameActions != len(s.knownPaths) {
		t.Fatalf("expected %d framed body SyncStep1 actions, got %d", len(s.knownPaths), frameActions)
	}
	if progressActions != len(s.knownPaths) {
		t.Fatalf("expected %d progress actions, got %d", len(s.knownPaths), progressActions)
	}
}

func TestActiveBinaryRoutesByDocName(t *testing.T) {
	s := New("ws1")
	s.Process(Event{Kind: EventConnected})
	s.Process(Event{Kind: EventText, Text: `{"type":"crdt_state","state":""}`})
	if s.State() != Active {
		t.Fatalf("expected Active, got %s", s.State())
	}

	wsFrame := syncproto.Frame(crdt.WorkspaceDocName("ws1"), syncproto.EncodeUpdate([]byte("wsupdate")))
	actions := s.Process(Event{Kind: EventBinary, Data: wsFrame})
	if len(actions) != 1 || actions[0].Kind != ActionFilesChanged {
		t.Fatalf("expected FilesChanged for workspace doc, got %+v", actions)
	}
	if string(actions[0].Update) != string(syncproto.EncodeUpdate([]byte("wsupdate"))) {
		t.Fatalf("expected raw sync message carried through, got %q", actions[0].Update)
	}

	bodyFrame := syncproto.Frame(crdt.BodyDocName("ws1", "a.md"), syncproto.EncodeUpdate([]byte("bodyupdate")))
	actions = s.Process(Event{Kind: EventBinary, Data: bodyFrame})
	if len(actions) != 1 || actions[0].Kind != ActionBodyChanged || actions[0].Path != crdt.BodyDocName("ws1", "a.md") {
		t.Fatalf("expected BodyChanged for body doc, got %+v", actions)
	}
}

func TestActiveLocalUpdateFramesAndSends(t *testing.T) {
	s := New("ws1")
	s.Process(Event{Kind: EventConnected})
	s.Process(Event{Kind: EventText, Text: `{"type":"crdt_state","state":""}`})

	actions := s.Process(Event{Kind: EventLocalUpdate, Doc: crdt.BodyDocName("ws1", "a.md"), Bytes: []byte("payload")})
	if len(actions) != 1 || actions[0].Kind != ActionSendFrame {
		t.Fatalf("expected a single SendFrame action, got %+v", actions)
	}
	doc, msg, err := syncproto.Unframe(actions[0].Frame)
	if err != nil {
		t.Fatalf("unframe: %v", err)
	}
	if doc != crdt.BodyDocName("ws1", "a.md") {
		t.Fatalf("expected body doc name, got %q", doc)
	}
	decoded, err := syncproto.Decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SyncKind != syncproto.SyncUpdate || string(decoded.Payload) != "payload" {
		t.Fatalf("expected SyncUpdate carrying 'payload', got %+v", decoded)
	}
}

func TestActiveSyncCompleteEmitsStatusSynced(t *testing.T) {
	s := New("ws1")
	s.Process(Event{Kind: EventConnected})
	s.Process(Event{Kind: EventText, Text: `{"type":"crdt_state","state":""}`})

	actions := s.Process(Event{Kind: EventText, Text: `{"type":"sync_complete","files_synced":3}`})
	if len(actions) != 1 || actions[0].Kind != ActionStatusChanged || actions[0].Status != StatusSynced {
		t.Fatalf("expected StatusChanged(Synced), got %+v", actions)
	}
}

func TestDisconnectedIsIdempotentFromAnyState(t *testing.T) {
	for _, seed := range []func(*Session){
		func(s *Session) {},
		func(s *Session) { s.Process(Event{Kind: EventConnected}) },
		func(s *Session) {
			s.Process(Event{Kind: EventConnected})
			s.Process(Event{Kind: EventText, Text: `{"type":"crdt_state","state":""}`})
		},
	} {
		s := New("ws1")
		seed(s)

		actions := s.Process(Event{Kind: EventDisconnected})
		if s.State() != AwaitingConnect {
			t.Fatalf("expected reset to AwaitingConnect, got %s", s.State())
		}
		if len(actions) != 1 || actions[0].Kind != ActionStatusChanged || actions[0].Status != StatusDisconnected {
			t.Fatalf("expected single StatusChanged(Disconnected), got %+v", actions)
		}

		// A second disconnect from the reset state is still idempotent.
		actions = s.Process(Event{Kind: EventDisconnected})
		if s.State() != AwaitingConnect {
			t.Fatalf("expected to remain AwaitingConnect, got %s", s.State())
		}
		if len(actions) != 1 || actions[0].Kind != ActionStatusChanged || actions[0].Status != StatusDisconnected {
			t.Fatalf("expected repeated StatusChanged(Disconnected), got %+v", actions)
		}
	}
}
