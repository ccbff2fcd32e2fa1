package models

// OwnerKind discriminates the two identities that may own a cart line or hold.
type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerSession OwnerKind = "session"
)

// OwnerRef identifies the owner of a hold or order: either an authenticated
// user id or an anonymous session key, never both. Construct it with
// AuthenticatedUser or AnonymousSession.
type OwnerRef struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

func AuthenticatedUser(userID string) OwnerRef {
	return OwnerRef{Kind: OwnerUser, ID: userID}
}

func AnonymousSession(sessionKey string) OwnerRef {
	return OwnerRef{Kind: OwnerSession, ID: sessionKey}
}

func (o OwnerRef) IsZero() bool {
	return o.ID == ""
}

// Key is the storage form, e.g. "user:42" or "session:abc123". Holds and
// orders store this single column, so a user and a session that happen to
// share a raw id can never collide.
func (o OwnerRef) Key() string {
	return string(o.Kind) + ":" + o.ID
}

func (o OwnerRef) String() string {
	return o.Key()
}
