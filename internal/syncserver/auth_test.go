package syncserver

import (
	"context"
	"testing"
)

func TestTokenAuthenticatorAcceptsRegisteredToken(t *testing.T) {
	auth := NewTokenAuthenticator(map[string]AuthenticatedUser{
		"secret": {UserID: "alice", ReadOnly: false},
	}, false)

	user, err := auth.Authenticate(context.Background(), "ws1", "secret", nil)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.UserID != "alice" {
		t.Fatalf("expected alice, got %+v", user)
	}
}

func TestTokenAuthenticatorRejectsUnknownToken(t *testing.T) {
	auth := NewTokenAuthenticator(nil, false)

	if _, err := auth.Authenticate(context.Background(), "ws1", "bogus", nil); err == nil {
		t.Fatalf("expected rejection for unknown token")
	}
}

func TestTokenAuthenticatorAdmitsGuestWithValidSessionCode(t *testing.T) {
	auth := NewTokenAuthenticator(nil, true)

	user, err := auth.Authenticate(context.Background(), "ws1", "", map[string]string{"session": "ABCD1234-WXYZ9876"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !user.IsGuest || !user.ReadOnly {
		t.Fatalf("expected read-only guest, got %+v", user)
	}
}

func TestTokenAuthenticatorRejectsMalformedSessionCode(t *testing.T) {
	auth := NewTokenAuthenticator(nil, true)

	if _, err := auth.Authenticate(context.Background(), "ws1", "", map[string]string{"session": "not-a-code"}); err == nil {
		t.Fatalf("expected rejection for malformed session code")
	}
}

func TestTokenAuthenticatorRejectsGuestsWhenDisallowed(t *testing.T) {
	auth := NewTokenAuthenticator(nil, false)

	if _, err := auth.Authenticate(context.Background(), "ws1", "", map[string]string{"session": "ABCD1234-WXYZ9876"}); err == nil {
		t.Fatalf("expected rejection when guests are disallowed")
	}
}
