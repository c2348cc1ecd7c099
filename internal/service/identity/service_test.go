package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/revocation"
)

const guestA = "2f1b7c1e-4a51-4f2e-9c35-0d6f7e0f9a11"

type brokenStore struct{}

func (brokenStore) Revoke(context.Context, string, time.Duration) error { return errors.New("down") }
func (brokenStore) IsRevoked(context.Context, string) (bool, error)     { return false, errors.New("down") }

func newTestService(store revocation.Store) *Service {
	s := New("test-secret", time.Hour, store, nil)
	s.newID = func() string { return "minted-id" }
	return s
}

func TestResolve_BearerWinsAndKeepsGuest(t *testing.T) {
	s := newTestService(revocation.NewMemory())
	tok, err := s.IssueAccessToken("user-1", domain.RoleCustomer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res := s.Resolve(context.Background(), "Bearer "+tok, guestA)
	if !res.Identity.IsAuthenticated() || res.Identity.PrincipalID != "user-1" {
		t.Fatalf("expected authenticated user-1, got %+v", res.Identity)
	}
	if res.GuestID != guestA {
		t.Fatalf("expected guest credential preserved for merge, got %q", res.GuestID)
	}
	if res.Minted {
		t.Fatalf("did not expect a minted credential")
	}
}

func TestResolve_ReusesGuestCredential(t *testing.T) {
	s := newTestService(revocation.NewMemory())
	res := s.Resolve(context.Background(), "", guestA)
	if !res.Identity.IsGuest() || res.Identity.GuestID != guestA || res.Minted {
		t.Fatalf("expected existing guest, got %+v", res)
	}
}

func TestResolve_MintsWhenAbsentMalformedOrRevoked(t *testing.T) {
	ctx := context.Background()
	store := revocation.NewMemory()
	s := newTestService(store)

	if res := s.Resolve(ctx, "", ""); !res.Minted || res.Identity.GuestID != "minted-id" {
		t.Fatalf("expected mint without cookie, got %+v", res)
	}
	if res := s.Resolve(ctx, "", "not-a-uuid"); !res.Minted {
		t.Fatalf("expected mint for malformed cookie, got %+v", res)
	}
	if err := s.RevokeGuest(ctx, guestA); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if res := s.Resolve(ctx, "", guestA); !res.Minted || res.Identity.GuestID == guestA {
		t.Fatalf("expected revoked credential replaced, got %+v", res)
	}
}

func TestResolve_UnreachableRevocationStoreKeepsCookie(t *testing.T) {
	s := newTestService(brokenStore{})
	res := s.Resolve(context.Background(), "", guestA)
	if res.Minted || res.Identity.GuestID != guestA {
		t.Fatalf("expected the presented credential to be kept, got %+v", res)
	}
	if res := s.Resolve(context.Background(), "", ""); !res.Minted {
		t.Fatalf("expected a fresh credential without a cookie, got %+v", res)
	}
}

func TestResolve_InvalidTokenFallsBackToGuest(t *testing.T) {
	s := newTestService(revocation.NewMemory())
	other := New("other-secret", time.Hour, revocation.NewMemory(), nil)
	forged, err := other.IssueAccessToken("user-1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res := s.Resolve(context.Background(), "Bearer "+forged, guestA)
	if !res.Identity.IsGuest() || res.Identity.GuestID != guestA {
		t.Fatalf("expected guest fallback, got %+v", res.Identity)
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	s := newTestService(revocation.NewMemory())
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	tok, err := s.IssueAccessToken("user-1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := s.ParseAccessToken(tok)
	if err != nil || p.Role != domain.RoleAdmin {
		t.Fatalf("expected valid admin token, got %+v err=%v", p, err)
	}

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := s.ParseAccessToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"":            "",
		"Bearer ":     "",
	}
	for in, want := range cases {
		if got := BearerToken(in); got != want {
			t.Fatalf("BearerToken(%q): expected %q, got %q", in, want, got)
		}
	}
}
