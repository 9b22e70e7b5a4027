package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	goretry "github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderrecon/pkg/config"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
	"github.com/angelmondragon/orderrecon/pkg/enums"
	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type txRunner interface {
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// notificationPublisher is the single notification topic every reconcile event goes to.
type notificationPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type RelayParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRepository
	DLQ        dlqRepository
	Registry   registryResolver
	Publisher  notificationPublisher
	Now        func() time.Time
}

// Relay moves reconcile notification events from the outbox table to Pub/Sub.
// Rows are delivered at least once; rows that cannot or should not be
// delivered are copied to the DLQ and pinned at the attempt limit.
type Relay struct {
	logg         *logger.Logger
	db           txRunner
	repo         outboxRepository
	dlq          dlqRepository
	registry     registryResolver
	publisher    notificationPublisher
	policies     deliveryPolicies
	now          func() time.Time
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.Publisher == nil:
		return nil, errors.New("notification publisher is required")
	}

	batch := params.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Relay{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		dlq:          params.DLQ,
		registry:     params.Registry,
		publisher:    params.Publisher,
		policies:     newDeliveryPolicies(params.Outbox, maxAttempts),
		now:          now,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
	}, nil
}

// Run drains the outbox until the context is canceled. Full batches are
// followed immediately by the next one; an empty batch waits one poll
// interval and batch errors back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	backoff := r.newBackoff()
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay context canceled")
			return err
		}

		processed, err := r.relayBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait, _ = backoff.Next()
		case processed:
			backoff = r.newBackoff()
			continue
		default:
			backoff = r.newBackoff()
			wait = r.pollInterval
		}

		if err := sleep(ctx, wait); err != nil {
			r.logg.Info(ctx, "outbox relay context canceled")
			return err
		}
	}
}

func (r *Relay) newBackoff() goretry.Backoff {
	backoff := goretry.NewExponential(r.pollInterval)
	backoff = goretry.WithCappedDuration(maxBackoff, backoff)
	return goretry.WithJitter(jitterWindow, backoff)
}

// relayBatch handles one locked batch inside a single transaction. It reports
// whether any row was fetched.
func (r *Relay) relayBatch(ctx context.Context) (bool, error) {
	processed := false
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := r.relayOne(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// relayOne returns an error only when the row's own bookkeeping fails.
func (r *Relay) relayOne(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return r.park(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, eventFields(event, nil))
	}
	fields := eventFields(event, resolved)
	policy := r.policies.forEvent(event.EventType)

	if policy.stale(resolved.Envelope.OccurredAt, r.now()) {
		staleErr := fmt.Errorf("%s older than %s", event.EventType, policy.staleAfter)
		return r.park(ctx, tx, event, enums.OutboxDLQReasonStale, staleErr, fields)
	}

	err = r.deliver(ctx, event, resolved, policy)
	if err == nil {
		if markErr := r.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return r.park(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	if attempt >= policy.maxAttempts {
		exhausted := fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		return r.park(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, exhausted, fields)
	}

	warnCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", err.Error())
	r.logg.Warn(warnCtx, "outbox publish failed")
	if markErr := r.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent, policy deliveryPolicy) error {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if source := resolved.Envelope.Source; source != nil {
		attrs["source_component"] = source.Component
		if source.RunLabel != "" {
			attrs["run_label"] = source.RunLabel
		}
	}
	if policy.attributes != nil {
		for key, value := range policy.attributes(resolved.Payload) {
			attrs[key] = value
		}
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := r.publisher.Publish(publishCtx, &gcppubsub.Message{Data: event.Payload, Attributes: attrs})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for %s", event.EventType))
	}
	_, err := result.Get(publishCtx)
	return err
}

// park copies the row to the DLQ and pins its attempt count at the global
// limit so the fetch query never returns it again.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	warnCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", cause.Error())
	r.logg.Warn(warnCtx, "outbox event parked")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      r.now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if resolved != nil {
		fields["event_id"] = resolved.Envelope.EventID
		fields["topic"] = resolved.Descriptor.Topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type gcpPublisher struct {
	publisher *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) *gcpPublisher {
	return &gcpPublisher{publisher: p}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.publisher.Publish(ctx, msg)
}

// Stop flushes buffered messages; call it once the relay has returned.
func (p *gcpPublisher) Stop() {
	p.publisher.Stop()
}
