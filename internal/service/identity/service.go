package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/revocation"
)

const (
	// CookieName carries the opaque guest credential.
	CookieName = "guest_cart_id"
	// GuestTTL bounds both the cookie and any revocation record for it.
	GuestTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken indicates the bearer token could not be validated.
var ErrInvalidToken = errors.New("invalid token")

// Principal is the verified subject of an access token.
type Principal struct {
	ID   string
	Role domain.Role
}

// Resolution is the outcome of resolving one request.
type Resolution struct {
	Identity domain.CartIdentity
	// GuestID is the guest credential presented with the request, kept even
	// when a bearer token wins so the caller can merge it.
	GuestID   string
	Minted    bool
	Principal *Principal
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies access tokens and resolves cart identities.
type Service struct {
	secret    []byte
	accessTTL time.Duration
	revoked   revocation.Store
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func New(secret string, accessTTL time.Duration, revoked revocation.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		revoked:   revoked,
		logger:    logger.Named("identity"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// IssueAccessToken signs an HS256 token for the principal.
func (s *Service) IssueAccessToken(principalID string, role domain.Role) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// AccessTTLSeconds exposes the access token lifetime in seconds.
func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}

// ParseAccessToken verifies a raw token and returns its principal.
func (s *Service) ParseAccessToken(raw string) (*Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	role := domain.Role(c.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleCustomer
	}
	return &Principal{ID: c.Subject, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Resolve maps request evidence to a cart identity. A valid bearer token wins;
// otherwise a usable guest credential is reused; otherwise a new one is minted.
// An invalid token is treated as absent.
func (s *Service) Resolve(ctx context.Context, authorization, guestCookie string) Resolution {
	guestID := s.usableGuest(ctx, guestCookie)

	if raw := BearerToken(authorization); raw != "" {
		if p, err := s.ParseAccessToken(raw); err == nil {
			return Resolution{
				Identity:  domain.AuthenticatedIdentity(p.ID),
				GuestID:   guestID,
				Principal: p,
			}
		}
		s.logger.Debug("ignoring invalid bearer token")
	}

	if guestID != "" {
		return Resolution{Identity: domain.GuestIdentity(guestID), GuestID: guestID}
	}

	minted := s.newID()
	return Resolution{Identity: domain.GuestIdentity(minted), GuestID: minted, Minted: true}
}

// usableGuest returns the credential if it is well formed and not revoked.
// When the revocation store cannot be reached the credential is kept: a
// revoked id only ever points at an empty guest cart, while rotating a live
// one would orphan its lines.
func (s *Service) usableGuest(ctx context.Context, cookie string) string {
	if cookie == "" {
		return ""
	}
	if _, err := uuid.Parse(cookie); err != nil {
		return ""
	}
	revoked, err := s.revoked.IsRevoked(ctx, cookie)
	if err != nil {
		s.logger.Warn("revocation check failed, keeping guest credential", zap.Error(err))
		return cookie
	}
	if revoked {
		return ""
	}
	return cookie
}

// RevokeGuest retires a guest credential after its cart has been merged.
func (s *Service) RevokeGuest(ctx context.Context, guestID string) error {
	return s.revoked.Revoke(ctx, guestID, GuestTTL)
}
