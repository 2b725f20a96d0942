package crdt

import "testing"

func TestBodyApplyUpdateIdempotent(t *testing.T) {
	a := NewBody("body:ws1/hello.md", "device-a")
	a.SetBody("Hello world", 1000)
	update := a.EncodeStateAsUpdate()

	b := NewBody("body:ws1/hello.md", "device-b")
	if err := b.ApplyUpdate(update, OriginSync); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := b.ApplyUpdate(update, OriginSync); err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if b.GetBody() != "Hello world" {
		t.Fatalf("expected body to converge, got %q", b.GetBody())
	}
}

func TestBodyStateVectorDiff(t *testing.T) {
	a := NewBody("body:ws1/a.md", "device-a")
	a.SetBody("first draft", 1000)

	b := NewBody("body:ws1/a.md", "device-b")
	diff, err := a.EncodeDiff(b.EncodeStateVector())
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if err := b.ApplyUpdate(diff, OriginSync); err != nil {
		t.Fatalf("apply diff: %v", err)
	}
	if b.GetBody() != "first draft" {
		t.Fatalf("expected diff to carry text, got %q", b.GetBody())
	}

	// Peer already current: no-op diff leaves text unchanged.
	noop, err := a.EncodeDiff(b.EncodeStateVector())
	if err != nil {
		t.Fatalf("noop diff: %v", err)
	}
	if err := b.ApplyUpdate(noop, OriginSync); err != nil {
		t.Fatalf("apply noop: %v", err)
	}
	if b.GetBody() != "first draft" {
		t.Fatalf("expected unchanged body after no-op diff, got %q", b.GetBody())
	}
}

func TestBodyLaterWriteWins(t *testing.T) {
	b := NewBody("body:ws1/a.md", "device-a")
	b.SetBody("older", 1000)
	b.SetBody("stale overwrite attempt", 500)
	if b.GetBody() != "older" {
		t.Fatalf("expected earlier write to be rejected, got %q", b.GetBody())
	}
	b.SetBody("newer", 2000)
	if b.GetBody() != "newer" {
		t.Fatalf("expected later write to win, got %q", b.GetBody())
	}
}
