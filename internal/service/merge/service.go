package merge

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/telemetry"
)

type cartRepo interface {
	MergeGuest(ctx context.Context, guestID, principalID string) (cartrepo.MergeResult, error)
	Consolidate(ctx context.Context, principalID string) (cartrepo.ConsolidateResult, error)
}

type revoker interface {
	RevokeGuest(ctx context.Context, guestID string) error
}

// Recorder receives merge outcomes for metrics.
type Recorder interface {
	GuestMerge(outcome string)
	CartsFolded(n int)
}

type nopRecorder struct{}

func (nopRecorder) GuestMerge(string) {}
func (nopRecorder) CartsFolded(int)   {}

// Result reports a guest promotion. ClearCredential tells the caller to drop
// the guest cookie.
type Result struct {
	CartID          int64 `json:"cartId,omitempty"`
	ItemsMerged     int   `json:"itemsMerged"`
	ClearCredential bool  `json:"-"`
}

// Service promotes guest carts and folds duplicate principal carts.
type Service struct {
	repo     cartRepo
	revoker  revoker
	logger   *zap.Logger
	recorder Recorder
}

func New(repo cartRepo, revoker revoker, logger *zap.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{repo: repo, revoker: revoker, logger: logger.Named("merge"), recorder: recorder}
}

// PromoteGuest moves a guest cart into the principal's cart. It is safe to
// retry: until the merge commits the guest lines and credential stay intact,
// and once it commits there is nothing left to merge.
func (s *Service) PromoteGuest(ctx context.Context, guestID, principalID string) (Result, error) {
	if guestID == "" {
		return Result{}, nil
	}
	ctx, span := telemetry.Start(ctx, "merge.promote_guest", attribute.String("principal_id", principalID))
	defer span.End()

	res, err := s.repo.MergeGuest(ctx, guestID, principalID)
	if err != nil {
		span.RecordError(err)
		s.recorder.GuestMerge("failed")
		return Result{}, err
	}
	if res.ItemsMerged == 0 {
		s.recorder.GuestMerge("empty")
		return Result{}, nil
	}
	s.recorder.GuestMerge("merged")

	// Lines are committed; a failed revocation only leaves an empty guest cart behind.
	if err := s.revoker.RevokeGuest(ctx, guestID); err != nil {
		s.logger.Warn("revoke guest credential", zap.String("principal_id", principalID), zap.Error(err))
	}
	span.SetAttributes(attribute.Int("items_merged", res.ItemsMerged))
	return Result{CartID: res.CartID, ItemsMerged: res.ItemsMerged, ClearCredential: true}, nil
}

// Consolidate folds duplicate carts of the principal into the oldest one.
func (s *Service) Consolidate(ctx context.Context, principalID string) (cartrepo.ConsolidateResult, error) {
	ctx, span := telemetry.Start(ctx, "merge.consolidate", attribute.String("principal_id", principalID))
	defer span.End()

	res, err := s.repo.Consolidate(ctx, principalID)
	if err != nil {
		return cartrepo.ConsolidateResult{}, err
	}
	if res.CartsRemoved > 0 {
		s.recorder.CartsFolded(res.CartsRemoved)
	}
	return res, nil
}
