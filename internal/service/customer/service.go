package customer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"storefront/internal/domain"
	"storefront/internal/notify"
	custrepo "storefront/internal/repository/customer"
	tokenrepo "storefront/internal/repository/token"
)

// ErrInvalidToken indicates the provided verification token could not be validated.
var ErrInvalidToken = errors.New("invalid token")

type accessIssuer interface {
	IssueAccessToken(principalID string, role domain.Role) (string, error)
}

type verificationNotifier interface {
	EmailVerification(ev notify.EmailVerification)
}

// Service handles customer registration, login and email verification.
// Each successful call returns a signed access token for the customer.
type Service struct {
	repo        custrepo.Repository
	tokens      *tokenManager
	issuer      accessIssuer
	notifier    verificationNotifier
	logger      *zap.Logger
	verifyTTL   time.Duration
	passwordMin int
}

func New(repo custrepo.Repository, tokens tokenrepo.Repository, issuer accessIssuer, notifier verificationNotifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		tokens:      newTokenManager(tokens),
		issuer:      issuer,
		notifier:    notifier,
		logger:      logger.Named("customer"),
		verifyTTL:   48 * time.Hour,
		passwordMin: 8,
	}
}

// RegisterInput captures fields expected by the registration endpoint.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Session is a customer together with a freshly issued access token.
type Session struct {
	Customer    *domain.Customer
	AccessToken string
}

// Register creates a customer, sends a verification token and signs them in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.NewValidationError("email", "must be a valid email address")
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Create(ctx, domain.Customer{
		Email:        email,
		PasswordHash: string(hashed),
		Name:         strings.TrimSpace(in.Name),
		Role:         domain.RoleCustomer,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(ctx, c.ID, tokenrepo.KindEmailVerification, s.verifyTTL)
	if err != nil {
		s.logger.Warn("issue verification token", zap.String("customer_id", c.ID), zap.Error(err))
	} else {
		s.notifier.EmailVerification(notify.EmailVerification{CustomerID: c.ID, Email: c.Email, Token: token})
	}
	return s.session(c)
}

// Login validates credentials and returns a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	password = strings.TrimSpace(password)
	c, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.session(c)
}

// VerifyEmail consumes a verification token, marks the email verified and
// signs the customer in.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Session, error) {
	customerID, ok := s.tokens.Consume(ctx, token, tokenrepo.KindEmailVerification)
	if !ok {
		return nil, ErrInvalidToken
	}
	if err := s.repo.MarkEmailVerified(ctx, customerID); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.session(c)
}

func (s *Service) session(c *domain.Customer) (*Session, error) {
	access, err := s.issuer.IssueAccessToken(c.ID, c.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Customer: c, AccessToken: access}, nil
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", min))
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return domain.NewValidationError("password", "must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}
