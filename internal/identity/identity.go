package identity

import "github.com/google/uuid"

// Provider answers "who is this device". The id is anonymous and only used
// to decide who hosts a room.
type Provider interface {
	CurrentSessionID() (string, bool)
}

// Static is an identity that is already known.
type Static string

func (s Static) CurrentSessionID() (string, bool) {
	return string(s), s != ""
}

// Anonymous is a device that has not signed in yet.
type Anonymous struct{}

func (Anonymous) CurrentSessionID() (string, bool) {
	return "", false
}

// New issues a fresh anonymous session identity.
func New() Static {
	return Static(uuid.NewString())
}

// Valid reports whether id looks like an identity issued by New.
func Valid(id string) bool {
	return uuid.Validate(id) == nil
}
