package checkout

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/notify"
	cartrepo "storefront/internal/repository/cart"
	orderrepo "storefront/internal/repository/order"
	"storefront/internal/telemetry"
)

const maxStatusAttempts = 3

type carts interface {
	Consolidate(ctx context.Context, principalID string) (cartrepo.ConsolidateResult, error)
	CartLines(cartID int64) cartrepo.Lines
}

type catalog interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

// Notifier delivers order events without blocking the caller.
type Notifier interface {
	OrderPlaced(ev notify.OrderPlaced)
	StatusChanged(ev notify.StatusChanged)
}

// Recorder receives checkout outcomes for metrics.
type Recorder interface {
	OrderPlaced()
	InsufficientStock()
}

type nopRecorder struct{}

func (nopRecorder) OrderPlaced()       {}
func (nopRecorder) InsufficientStock() {}

// Service converts carts into orders and drives the order status machine.
type Service struct {
	carts    carts
	catalog  catalog
	orders   orderrepo.Repository
	notifier Notifier
	validate *validator.Validate
	logger   *zap.Logger
	recorder Recorder
}

func New(carts carts, catalog catalog, orders orderrepo.Repository, notifier Notifier, logger *zap.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		carts:    carts,
		catalog:  catalog,
		orders:   orders,
		notifier: notifier,
		validate: newValidator(),
		logger:   logger.Named("checkout"),
		recorder: recorder,
	}
}

// PlaceOrder checks out the principal's cart. Stock is checked against the
// catalog first so an obviously unfulfillable cart fails without locking, then
// re-checked on locked rows inside the order transaction.
func (s *Service) PlaceOrder(ctx context.Context, principalID string, in domain.Contact) (*orderrepo.Placed, error) {
	ctx, span := telemetry.Start(ctx, "checkout.place_order", attribute.String("principal_id", principalID))
	defer span.End()

	contact, err := normalizeContact(s.validate, in)
	if err != nil {
		return nil, err
	}

	consolidated, err := s.carts.Consolidate(ctx, principalID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	cartID := consolidated.CanonicalCartID

	lines, err := s.carts.CartLines(cartID).List(ctx)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, l := range lines {
		p, err := s.catalog.GetByID(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < l.Quantity {
			s.recorder.InsufficientStock()
			return nil, &domain.InsufficientStockError{
				ProductID: p.ID,
				Title:     p.Name,
				Requested: l.Quantity,
				Available: p.Stock,
			}
		}
	}

	placed, err := s.orders.PlaceFromCart(ctx, cartID, principalID, contact)
	if err != nil {
		var se *domain.InsufficientStockError
		if errors.As(err, &se) {
			s.recorder.InsufficientStock()
		}
		span.RecordError(err)
		return nil, err
	}
	s.recorder.OrderPlaced()
	span.SetAttributes(attribute.Int64("order_id", placed.Order.ID), attribute.Int64("total_cents", placed.Order.TotalCents))

	s.notifier.OrderPlaced(notify.OrderPlaced{Order: *placed.Order, Lines: placed.Lines, Contact: contact})
	return placed, nil
}

// SetStatus applies a status change for the actor. Owners may only cancel
// their own pending or processing orders; admins follow the forward path.
// Orders of other principals are reported as not found to non-admins.
func (s *Service) SetStatus(ctx context.Context, orderID int64, to domain.OrderStatus, actor domain.Actor) (*domain.Order, error) {
	ctx, span := telemetry.Start(ctx, "checkout.set_status",
		attribute.Int64("order_id", orderID),
		attribute.String("to", string(to)),
		attribute.String("role", string(actor.Role)),
	)
	defer span.End()

	for attempt := 1; ; attempt++ {
		current, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !actor.IsAdmin() && current.PrincipalID != actor.PrincipalID {
			return nil, domain.ErrNotFound
		}
		if !domain.CanTransition(actor.Role, current.Status, to) {
			return nil, &domain.InvalidTransitionError{
				From:    current.Status,
				To:      to,
				Allowed: domain.AllowedTransitions(actor.Role, current.Status),
			}
		}

		updated, err := s.orders.UpdateStatus(ctx, orderID, current.Status, to)
		if errors.Is(err, orderrepo.ErrStatusConflict) && attempt < maxStatusAttempts {
			s.logger.Debug("status changed underneath, re-evaluating", zap.Int64("order_id", orderID))
			continue
		}
		if errors.Is(err, orderrepo.ErrStatusConflict) {
			return nil, domain.Storage("update order status", err)
		}
		if err != nil {
			return nil, err
		}

		if actor.IsAdmin() {
			s.notifyStatusChange(ctx, updated, current.Status)
		}
		return updated, nil
	}
}

func (s *Service) notifyStatusChange(ctx context.Context, o *domain.Order, from domain.OrderStatus) {
	lines, err := s.orders.PricedLines(ctx, o.ID)
	if err != nil {
		s.logger.Warn("status notification skipped", zap.Int64("order_id", o.ID), zap.Error(err))
		return
	}
	s.notifier.StatusChanged(notify.StatusChanged{
		OrderID:     o.ID,
		PrincipalID: o.PrincipalID,
		From:        from,
		To:          o.Status,
		Lines:       lines,
		Pricing:     domain.PriceLines(lines),
		Contact:     o.Contact,
	})
}

// GetOrder returns the order with its lines if the actor may see it.
func (s *Service) GetOrder(ctx context.Context, orderID int64, actor domain.Actor) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && o.PrincipalID != actor.PrincipalID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, principalID string) ([]domain.Order, error) {
	return s.orders.ListByPrincipal(ctx, principalID)
}
