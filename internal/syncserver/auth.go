package syncserver

import (
	"context"
	"regexp"
	"strings"

	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

var guestSessionPattern = regexp.MustCompile(`^[A-Z0-9]{8}-[A-Z0-9]{8}$`)

// TokenAuthenticator implements Authenticator against a static token
// table, grounded on spec.md §4.7's authenticate(doc-id, doc-type, token?,
// query) -> AuthenticatedUser|Reject contract: a registered token maps to
// a named user (optionally read-only), while the "session" query
// parameter admits anonymous guests bearing an 8-8 uppercase alphanumeric
// code per spec.md §5's websocket endpoint description.
type TokenAuthenticator struct {
	tokens map[string]AuthenticatedUser
	// AllowGuests permits unregistered connections carrying a well-formed
	// "session" query parameter to join as read-only guests.
	AllowGuests bool
}

// NewTokenAuthenticator builds an authenticator from a token -> user
// table. Tokens are matched verbatim; an empty table combined with
// AllowGuests=true authenticates guests only.
func NewTokenAuthenticator(tokens map[string]AuthenticatedUser, allowGuests bool) *TokenAuthenticator {
	table := make(map[string]AuthenticatedUser, len(tokens))
	for k, v := range tokens {
		table[k] = v
	}
	return &TokenAuthenticator{tokens: table, AllowGuests: allowGuests}
}

// Authenticate resolves a registered token first, falling back to guest
// admission via the "session" query parameter when AllowGuests is set.
func (a *TokenAuthenticator) Authenticate(_ context.Context, _ string, token string, query map[string]string) (AuthenticatedUser, error) {
	if token != "" {
		if user, ok := a.tokens[token]; ok {
			return user, nil
		}
		return AuthenticatedUser{}, diaryxerrors.Auth(nil, "unknown sync token")
	}

	if a.AllowGuests {
		session := strings.TrimSpace(query["session"])
		if guestSessionPattern.MatchString(session) {
			return AuthenticatedUser{UserID: "guest:" + session, ReadOnly: true, IsGuest: true}, nil
		}
	}

	return AuthenticatedUser{}, diaryxerrors.Auth(nil, "missing or invalid sync credentials")
}
