package cart

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/telemetry"
)

type cartRepo interface {
	Ensure(ctx context.Context, principalID string) (*domain.Cart, error)
	Find(ctx context.Context, principalID string) (*domain.Cart, error)
	CartLines(cartID int64) cartrepo.Lines
	GuestLines(guestID string) cartrepo.Lines
}

type catalog interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

// Service is the cart store. Every operation routes once on the identity kind
// and then works against the same Lines abstraction.
type Service struct {
	repo    cartRepo
	catalog catalog
	logger  *zap.Logger
}

func New(repo cartRepo, catalog catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, catalog: catalog, logger: logger.Named("cart")}
}

// Summary is a cart listing with its pricing preview.
type Summary struct {
	Lines   []domain.CartLine `json:"lines"`
	Pricing domain.Pricing    `json:"pricing"`
}

var errNoCart = errors.New("no cart yet")

// lines resolves the storage for id. Reads pass create=false so a principal
// without a cart is reported by errNoCart instead of creating one.
func (s *Service) lines(ctx context.Context, id domain.CartIdentity, create bool) (cartrepo.Lines, error) {
	switch id.Kind {
	case domain.IdentityGuest:
		if id.GuestID == "" {
			return nil, domain.NewValidationError("guestId", "missing guest credential")
		}
		return s.repo.GuestLines(id.GuestID), nil
	case domain.IdentityAuthenticated:
		var (
			c   *domain.Cart
			err error
		)
		if create {
			c, err = s.repo.Ensure(ctx, id.PrincipalID)
		} else {
			c, err = s.repo.Find(ctx, id.PrincipalID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, errNoCart
			}
		}
		if err != nil {
			return nil, err
		}
		return s.repo.CartLines(c.ID), nil
	default:
		return nil, fmt.Errorf("unknown identity kind %v", id.Kind)
	}
}

// Ensure guarantees a cart exists for the identity and returns its handle.
// Guest storage is created lazily on first add.
func (s *Service) Ensure(ctx context.Context, id domain.CartIdentity) (domain.CartHandle, error) {
	if id.IsGuest() {
		return domain.CartHandle{Identity: id, GuestID: id.GuestID}, nil
	}
	c, err := s.repo.Ensure(ctx, id.PrincipalID)
	if err != nil {
		return domain.CartHandle{}, err
	}
	return domain.CartHandle{Identity: id, CartID: c.ID}, nil
}

func (s *Service) List(ctx context.Context, id domain.CartIdentity) ([]domain.CartLine, error) {
	lines, err := s.lines(ctx, id, false)
	if errors.Is(err, errNoCart) {
		return []domain.CartLine{}, nil
	}
	if err != nil {
		return nil, err
	}
	return lines.List(ctx)
}

func (s *Service) Summary(ctx context.Context, id domain.CartIdentity) (*Summary, error) {
	list, err := s.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Summary{Lines: list, Pricing: domain.ComputePricing(domain.Subtotal(list))}, nil
}

func (s *Service) AddItem(ctx context.Context, id domain.CartIdentity, productID int64, quantity int) (*domain.CartLine, error) {
	ctx, span := telemetry.Start(ctx, "cart.add_item",
		attribute.String("identity", id.Kind.String()),
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", quantity),
	)
	defer span.End()

	if quantity < 1 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	if _, err := s.catalog.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	lines, err := s.lines(ctx, id, true)
	if err != nil {
		return nil, err
	}
	line, err := lines.Add(ctx, productID, quantity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return line, nil
}

func (s *Service) UpdateItem(ctx context.Context, id domain.CartIdentity, lineID int64, quantity int) error {
	if quantity < 1 || quantity > domain.MaxLineQuantity {
		productID, current := s.lookupLine(ctx, id, lineID)
		return &domain.QuantityExceededError{ProductID: productID, Current: current, Requested: quantity, Max: domain.MaxLineQuantity}
	}
	lines, err := s.lines(ctx, id, false)
	if errors.Is(err, errNoCart) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return lines.Update(ctx, lineID, quantity)
}

// lookupLine fills in error detail only; a missing line reports zeros.
func (s *Service) lookupLine(ctx context.Context, id domain.CartIdentity, lineID int64) (int64, int) {
	list, err := s.List(ctx, id)
	if err != nil {
		return 0, 0
	}
	for _, l := range list {
		if l.ID == lineID {
			return l.ProductID, l.Quantity
		}
	}
	return 0, 0
}

func (s *Service) RemoveItem(ctx context.Context, id domain.CartIdentity, lineID int64) error {
	lines, err := s.lines(ctx, id, false)
	if errors.Is(err, errNoCart) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return lines.Remove(ctx, lineID)
}

func (s *Service) Clear(ctx context.Context, id domain.CartIdentity) error {
	lines, err := s.lines(ctx, id, false)
	if errors.Is(err, errNoCart) {
		return nil
	}
	if err != nil {
		return err
	}
	return lines.Clear(ctx)
}
