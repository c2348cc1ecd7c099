package domain

// IdentityKind distinguishes the two ways a cart can be owned.
type IdentityKind int

const (
	IdentityGuest IdentityKind = iota + 1
	IdentityAuthenticated
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityGuest:
		return "guest"
	case IdentityAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// CartIdentity is who a cart request acts for. Exactly one of GuestID or
// PrincipalID is set, matching Kind.
type CartIdentity struct {
	Kind        IdentityKind
	GuestID     string
	PrincipalID string
}

// GuestIdentity builds an identity backed by an opaque guest credential.
func GuestIdentity(guestID string) CartIdentity {
	return CartIdentity{Kind: IdentityGuest, GuestID: guestID}
}

// AuthenticatedIdentity builds an identity for a verified principal.
func AuthenticatedIdentity(principalID string) CartIdentity {
	return CartIdentity{Kind: IdentityAuthenticated, PrincipalID: principalID}
}

func (c CartIdentity) IsGuest() bool {
	return c.Kind == IdentityGuest
}

func (c CartIdentity) IsAuthenticated() bool {
	return c.Kind == IdentityAuthenticated
}
