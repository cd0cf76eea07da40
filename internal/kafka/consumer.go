package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akarpov/orders-bridge/internal/application"
	"github.com/akarpov/orders-bridge/internal/logger"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

// StartConsumer reads upstream order requests from the ingestion topic, runs
// them through the ingestion service and hands successful ingests to the
// dispatcher. Invalid payloads and duplicates are committed and skipped;
// transient ingest failures are retried without committing.
func StartConsumer(ctx context.Context, svc *application.OrdersService, disp *application.Dispatcher, cfg ConsumerConfig) (*kafka.Reader, error) {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go func() {
		defer r.Close()

		backoff := time.Millisecond * 300
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("kafka fetch error", "err", err)
				time.Sleep(backoff)
				continue
			}

			var req application.IngestRequest
			if err = json.Unmarshal(m.Value, &req); err != nil {
				logger.Warn("kafka invalid json, skip and commit", "err", err)
				_ = r.CommitMessages(ctx, m)
				continue
			}
			if err = req.Validate(); err != nil {
				logger.Warn("kafka invalid order request, skip and commit", "err", err)
				_ = r.CommitMessages(ctx, m)
				continue
			}

			snap, err := svc.Ingest(ctx, req)
			if err != nil {
				if errors.Is(err, application.ErrDuplicateOrder) {
					logger.Info("kafka duplicate order, skip and commit", "external_order_id", req.OrderID)
					_ = r.CommitMessages(ctx, m)
					continue
				}
				logger.Warn("kafka ingest failed, will retry", "external_order_id", req.OrderID, "err", err)
				time.Sleep(backoff)
				continue
			}

			disp.DispatchAsync(ctx, snap)

			if err := r.CommitMessages(ctx, m); err != nil {
				logger.Warn("kafka commit failed", "err", err)
			} else {
				logger.Info("kafka order ingested",
					"topic", m.Topic, "partition", m.Partition, "offset", m.Offset,
					"external_order_id", req.OrderID)
			}
		}
	}()
	return r, nil
}
