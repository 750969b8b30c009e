package outbox

import (
	"context"
	"time"

	"github.com/orlcnr/mesa-core/pkg/config"
	"github.com/orlcnr/mesa-core/pkg/logger"
)

// Notifier is the transport port behind the event sink. Delivery is
// fire-and-forget from the core's point of view; the concrete transport
// (websocket hub, message broker) lives outside this module.
type Notifier interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}

// Publisher drains staged outbox rows and hands them to the notifier.
type Publisher struct {
	repo     *Repository
	notifier Notifier
	logg     *logger.Logger
	cfg      config.OutboxConfig
}

func NewPublisher(repo *Repository, notifier Notifier, logg *logger.Logger, cfg config.OutboxConfig) *Publisher {
	return &Publisher{repo: repo, notifier: notifier, logg: logg, cfg: cfg}
}

// Run polls until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	interval := time.Duration(p.cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.DrainOnce(ctx); err != nil {
				p.logg.Error(ctx, "outbox drain failed", err)
			}
		}
	}
}

// DrainOnce publishes one batch of unpublished events.
func (p *Publisher) DrainOnce(ctx context.Context) error {
	batch := p.cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	rows, err := p.repo.FetchUnpublished(batch)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if p.cfg.MaxAttempts > 0 && row.Attempts >= p.cfg.MaxAttempts {
			// parked; operator intervention required
			continue
		}
		if err := p.notifier.Publish(ctx, string(row.EventType), row.Payload); err != nil {
			p.logg.Error(p.logg.WithField(ctx, "event_id", row.ID.String()), "publish event", err)
			if markErr := p.repo.MarkFailed(row.ID); markErr != nil {
				return markErr
			}
			continue
		}
		if err := p.repo.MarkPublished(row.ID); err != nil {
			return err
		}
	}
	return nil
}
