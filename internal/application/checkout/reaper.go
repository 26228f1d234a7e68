package checkout

import (
	"context"
	"time"

	domorder "github.com/benilbaisil/car/internal/domain/order"
	"github.com/benilbaisil/car/internal/observability"
)

// Reaper cancels awaiting-payment orders whose payment never arrived within
// the TTL. Stock is untouched because nothing is decremented before
// settlement.
type Reaper struct {
	orders   domorder.Repository
	ttl      time.Duration
	interval time.Duration

	log     observability.Logger
	counter observability.Counter
}

func NewReaper(orders domorder.Repository, ttl, interval time.Duration, tel observability.Observability) *Reaper {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Reaper{
		orders:   orders,
		ttl:      ttl,
		interval: interval,
		log:      tel.Logger().With(observability.F("component", "order_reaper")),
		counter:  tel.Metrics().Counter(observability.MOrdersReaped),
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("order_reaper_started",
		observability.F("ttl", r.ttl.String()),
		observability.F("interval", r.interval.String()),
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("order_reaper_stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep cancels stale orders once and reports how many it touched.
func (r *Reaper) Sweep(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-r.ttl)

	ids, err := r.orders.CancelStaleAwaitingPayment(ctx, cutoff)
	if err != nil {
		r.log.Error("order_reaper_sweep_failed", observability.F("error", err))
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	r.counter.Add(float64(len(ids)))
	r.log.Info("stale_orders_cancelled",
		observability.F("count", len(ids)),
		observability.F("order_ids", ids),
	)
	return len(ids)
}
