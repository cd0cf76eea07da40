package application

import (
	"context"
	"sync"

	"github.com/akarpov/orders-bridge/internal/domain"
	"github.com/akarpov/orders-bridge/internal/logger"
)

// DownstreamSender forwards one order snapshot to the downstream system.
type DownstreamSender interface {
	SendOrder(ctx context.Context, snap domain.Snapshot) error
}

// StatusWriter records a terminal dispatch outcome. Satisfied by the order
// repository; kept separate so status writes never touch the ingestion path.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, externalOrderID string, status domain.Status) error
}

// Dispatcher forwards processed orders downstream off the caller's critical
// path. Every attempt ends in exactly one status write, SENT or ERROR, and no
// failure ever reaches the code that triggered the dispatch.
type Dispatcher struct {
	sender DownstreamSender
	status StatusWriter
	wg     sync.WaitGroup
}

func NewDispatcher(sender DownstreamSender, status StatusWriter) *Dispatcher {
	return &Dispatcher{sender: sender, status: status}
}

// DispatchAsync hands the snapshot to a fresh goroutine and returns
// immediately. The context is detached from the caller so the in-flight send
// survives the HTTP response.
func (d *Dispatcher) DispatchAsync(ctx context.Context, snap domain.Snapshot) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.dispatch(ctx, snap)
	}()
}

func (d *Dispatcher) dispatch(ctx context.Context, snap domain.Snapshot) {
	outcome := domain.StatusSent
	if err := d.sender.SendOrder(ctx, snap); err != nil {
		logger.Warn("downstream send failed",
			"external_order_id", snap.ExternalOrderID, "err", err)
		outcome = domain.StatusError
	} else {
		logger.Info("order forwarded downstream", "external_order_id", snap.ExternalOrderID)
	}

	if err := d.status.UpdateStatus(ctx, snap.ExternalOrderID, outcome); err != nil {
		logger.Error("dispatch status write failed",
			"external_order_id", snap.ExternalOrderID, "status", outcome, "err", err)
	}
}

// Close waits for in-flight dispatches to finish their status writes.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}
