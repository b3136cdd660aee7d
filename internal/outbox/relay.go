package outbox

import (
	"context"
	"time"

	"orderengine/internal/domain/model"
	"orderengine/internal/metrics"
	repo "orderengine/internal/repository"

	"go.uber.org/zap"
)

const (
	defaultBatchSize = 100
	defaultInterval  = 2 * time.Second
)

// 未送信のoutboxを定期的に拾ってブローカーへ流す
// 送信に失敗したらsent_atを埋めずにロールバックし、次の周期で再送する（at-least-once）
type Relay struct {
	tx       repo.TransactionManager
	pub      Publisher
	batch    int
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRelay(tx repo.TransactionManager, pub Publisher, batch int, interval time.Duration, log *zap.Logger, m *metrics.Metrics) *Relay {
	if batch <= 0 {
		batch = defaultBatchSize
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		tx:       tx,
		pub:      pub,
		batch:    batch,
		interval: interval,
		log:      log.Named("outbox"),
		metrics:  m,
		now:      time.Now,
	}
}

// ctxが終わるまで回す
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info("outbox relay started", zap.Duration("interval", r.interval), zap.Int("batch", r.batch))
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		//溜まっている分は続けて流す
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.metrics.IncOutboxFailures()
				r.log.Warn("outbox flush failed", zap.Error(err))
				break
			}
			if n < r.batch {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return nil
		case <-t.C:
		}
	}
}

// 1バッチ送って送れた件数を返す
func (r *Relay) Flush(ctx context.Context) (int, error) {
	sent := 0
	err := r.tx.WithinTx(ctx, func(tr repo.TxRepos) error {
		sent = 0
		events, err := tr.Outbox().FetchPending(ctx, r.batch)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		//行ロックを持ったまま送る。別のリレーは同じ行を飛ばす
		if err := r.pub.Publish(ctx, events); err != nil {
			return err
		}
		if err := tr.Outbox().MarkSent(ctx, eventIDs(events), r.now().UTC()); err != nil {
			return err
		}
		sent = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		r.metrics.AddOutboxPublished(sent)
		r.log.Debug("outbox flushed", zap.Int("count", sent))
	}
	return sent, nil
}

func eventIDs(events []model.OutboxEvent) []int64 {
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	return ids
}
