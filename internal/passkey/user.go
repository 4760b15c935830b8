package passkey

import (
	"crypto/rand"
	"fmt"

	"github.com/go-webauthn/webauthn/webauthn"
)

type sessionKey string

const (
	webAuthnSessionKey sessionKey = "webauthnSession"
	userIDSessionKey   sessionKey = "userID"
)

// user adapts a database row to the webauthn.User interface. The id is the
// random byte handle stored in users.webauthn_user_id, not the integer primary
// key the rest of the application uses.
type user struct {
	id          []byte
	displayName string
	credentials []webauthn.Credential
}

const webAuthnIDLength = 16

// newRandomUser creates a user with a random webauthn handle. The display name
// doubles as a human-readable registration timestamp hint and can be changed
// later.
func newRandomUser() (*user, error) {
	id := make([]byte, webAuthnIDLength)
	if _, err := rand.Read(id); err != nil {
		return nil, fmt.Errorf("generate webauthn user id: %w", err)
	}
	return &user{
		id:          id,
		displayName: "Athlete",
		credentials: nil,
	}, nil
}

func (u *user) WebAuthnID() []byte {
	return u.id
}

func (u *user) WebAuthnName() string {
	return u.displayName
}

func (u *user) WebAuthnDisplayName() string {
	return u.displayName
}

func (u *user) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
