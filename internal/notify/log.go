package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the log. Used when no broker is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("notify")}
}

func (s *LogSender) OrderPlaced(_ context.Context, ev OrderPlaced) error {
	s.logger.Info(EventOrderPlaced,
		zap.Int64("order_id", ev.Order.ID),
		zap.String("customer", ev.Contact.CustomerName),
		zap.Int64("total_cents", ev.Order.TotalCents),
		zap.Int("lines", len(ev.Lines)),
	)
	return nil
}

func (s *LogSender) StatusChanged(_ context.Context, ev StatusChanged) error {
	s.logger.Info(EventOrderStatus,
		zap.Int64("order_id", ev.OrderID),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
		zap.Int64("total_cents", ev.Pricing.TotalCents),
	)
	return nil
}

func (s *LogSender) EmailVerification(_ context.Context, ev EmailVerification) error {
	s.logger.Info(EventEmailVerification, zap.String("customer_id", ev.CustomerID), zap.String("email", ev.Email))
	return nil
}
