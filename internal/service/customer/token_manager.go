package customer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"storefront/internal/domain"
	tokenrepo "storefront/internal/repository/token"
)

type tokenManager struct {
	repo tokenrepo.Repository
	now  func() time.Time
}

func newTokenManager(repo tokenrepo.Repository) *tokenManager {
	return &tokenManager{repo: repo, now: time.Now}
}

func (m *tokenManager) Issue(ctx context.Context, customerID, kind string, ttl time.Duration) (string, error) {
	now := m.now()
	// Expired tokens are swept opportunistically; a failed sweep does not block issuing.
	_, _ = m.repo.DeleteExpired(ctx, now)
	expiresAt := now.Add(ttl)
	for i := 0; i < 5; i++ {
		token, err := randomToken()
		if err != nil {
			return "", err
		}
		err = m.repo.Create(ctx, tokenrepo.Token{
			Token:      token,
			CustomerID: customerID,
			Kind:       kind,
			ExpiresAt:  expiresAt,
		})
		if err == nil {
			return token, nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		return "", err
	}
	return "", errors.New("token collision")
}

// Consume validates a single-use token of the given kind and deletes it.
func (m *tokenManager) Consume(ctx context.Context, token, kind string) (string, bool) {
	meta, err := m.repo.Get(ctx, token)
	if err != nil || meta.Kind != kind {
		return "", false
	}
	if err := m.repo.Delete(ctx, token); err != nil {
		// Lost a race with another consumer.
		return "", false
	}
	if m.now().After(meta.ExpiresAt) {
		return "", false
	}
	return meta.CustomerID, true
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
