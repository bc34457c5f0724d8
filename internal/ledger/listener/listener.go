package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	EventCheckoutCompleted = "CheckoutCompleted"

	dedupeKeyPrefix  = "ledger:event:"
	defaultDedupeTTL = 24 * time.Hour
)

// MessageReader is a consumer group reader with manual commits.
// *broker.KafkaConsumer satisfies it.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Guard claims an event id across replicas. *cache.RedisClient satisfies it.
type Guard interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type CheckoutListener struct {
	reader     MessageReader
	uc         ledger.UseCase
	guard      Guard
	owner      string
	dedupeTTL  time.Duration
	retryDelay time.Duration
	logger     logger.ZapLogger
}

// NewCheckoutListener builds a listener. guard may be nil, in which case
// duplicates are only caught by the ledger's reference id check.
func NewCheckoutListener(reader MessageReader, uc ledger.UseCase, guard Guard, owner string, logger logger.ZapLogger) *CheckoutListener {
	return &CheckoutListener{
		reader:     reader,
		uc:         uc,
		guard:      guard,
		owner:      owner,
		dedupeTTL:  defaultDedupeTTL,
		retryDelay: time.Second,
		logger:     logger,
	}
}

// Start consumes until ctx is done. An offset is committed only once its
// event is applied or dropped for good; a transient failure is retried on the
// same message, since committing a later offset would skip it.
func (l *CheckoutListener) Start(ctx context.Context) {
	l.logger.Info("Starting checkout Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping checkout Kafka listener")
			return
		default:
			msg, err := l.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to fetch kafka message", zap.Error(err))
				if !l.wait(ctx) {
					return
				}
				continue
			}
			if !l.handle(ctx, msg) {
				return
			}
			if err := l.reader.CommitMessages(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to commit kafka offset",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

// handle processes msg until it no longer fails transiently. It returns false
// when ctx ends first; the offset then stays uncommitted for the next owner.
func (l *CheckoutListener) handle(ctx context.Context, msg kafka.Message) bool {
	for {
		err := l.processMessage(ctx, msg.Value)
		if err == nil {
			return true
		}
		l.logger.Warn("Retrying checkout event",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		if !l.wait(ctx) {
			return false
		}
	}
}

func (l *CheckoutListener) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(l.retryDelay):
		return true
	}
}

type CheckoutCompletedEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   CheckoutPayload `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type CheckoutPayload struct {
	CheckoutID string          `json:"checkout_id"`
	CardID     string          `json:"card_id"`
	StoreID    string          `json:"store_id"`
	Lines      []dto.LineInput `json:"lines"`
}

// processMessage returns an error only for failures worth retrying. Foreign,
// malformed, duplicate and permanently rejected events return nil.
func (l *CheckoutListener) processMessage(ctx context.Context, value []byte) error {
	// Most topic traffic is other event types; skip them before a full decode.
	if gjson.GetBytes(value, "event_type").String() != EventCheckoutCompleted {
		return nil
	}

	var event CheckoutCompletedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return nil
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = event.Payload.CheckoutID
	}
	if eventID == "" {
		l.logger.Warn("Dropping checkout event without id")
		return nil
	}

	key := dedupeKeyPrefix + eventID
	if l.guard != nil {
		ok, err := l.guard.AcquireLock(ctx, key, l.owner, l.dedupeTTL)
		switch {
		case err != nil:
			l.logger.Warn("Event dedupe unavailable, relying on reference id",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		case !ok:
			l.logger.Debug("Skipping duplicate checkout event", zap.String("event_id", eventID))
			return nil
		}
	}

	l.logger.Info("Processing CheckoutCompleted event",
		zap.String("event_id", eventID),
		zap.String("checkout_id", event.Payload.CheckoutID),
	)

	input := &dto.ApplyPurchaseInput{
		CardID:      event.Payload.CardID,
		StoreID:     event.Payload.StoreID,
		ReferenceID: event.Payload.CheckoutID,
		Lines:       event.Payload.Lines,
	}
	if input.ReferenceID == "" {
		input.ReferenceID = eventID
	}
	if !event.Timestamp.IsZero() {
		input.Period = model.MonthlyPeriod(event.Timestamp)
	}

	_, err := l.uc.ApplyPurchase(ctx, input)
	if err == nil {
		return nil
	}

	if isPermanent(err) {
		l.logger.Error("Rejected checkout event",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return nil
	}

	l.logger.Error("Failed to apply checkout to ledger",
		zap.String("event_id", eventID),
		zap.Error(err),
	)
	// Give the event back so the retry can claim it again.
	if l.guard != nil {
		if err := l.guard.ReleaseLock(context.WithoutCancel(ctx), key, l.owner); err != nil {
			l.logger.Warn("Failed to release event claim", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return err
}

// isPermanent reports errors that will fail the same way on every redelivery.
func isPermanent(err error) bool {
	var verr *apperr.ValidationError
	return errors.As(err, &verr) || errors.Is(err, apperr.ErrInsufficientBalance)
}
