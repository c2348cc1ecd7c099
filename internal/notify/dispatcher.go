package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

// Dispatcher runs sends in the background, detached from the request that
// triggered them. Failures are logged only.
type Dispatcher struct {
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sender: sender, logger: logger.Named("notify"), timeout: defaultSendTimeout}
}

func (d *Dispatcher) OrderPlaced(ev OrderPlaced) {
	d.dispatch(EventOrderPlaced, func(ctx context.Context) error { return d.sender.OrderPlaced(ctx, ev) })
}

func (d *Dispatcher) StatusChanged(ev StatusChanged) {
	d.dispatch(EventOrderStatus, func(ctx context.Context) error { return d.sender.StatusChanged(ctx, ev) })
}

func (d *Dispatcher) EmailVerification(ev EmailVerification) {
	d.dispatch(EventEmailVerification, func(ctx context.Context) error { return d.sender.EmailVerification(ctx, ev) })
}

// Wait blocks until every in-flight send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(event string, send func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			d.logger.Warn("notification failed", zap.String("event", event), zap.Error(err))
		}
	}()
}
