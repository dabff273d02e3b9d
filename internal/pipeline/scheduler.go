package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	streamName    = "SUBMISSIONS"
	subjectName   = "submissions.process"
	consumerName  = "submission-pipeline"
	transientWait = 15 * time.Second
)

// Scheduler drives the processor through a durable NATS JetStream work
// queue. "Run again after D" is realised by nacking the unacked delivery
// with the requested delay, so every pending wait survives a process
// restart. The attempt counter comes from the delivery metadata.
type Scheduler struct {
	js        nats.JetStreamContext
	processor *Processor
	logger    zerolog.Logger

	subscription *nats.Subscription
}

func NewScheduler(js nats.JetStreamContext, processor *Processor, logger zerolog.Logger) (*Scheduler, error) {
	_, err := js.StreamInfo(streamName)
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      streamName,
			Subjects:  []string{subjectName},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
			MaxAge:    24 * time.Hour,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &Scheduler{
		js:        js,
		processor: processor,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Trigger enqueues a pipeline run for the submission. Forced runs clear
// prior results on first delivery; follow-up tasks the scheduler publishes
// for itself always carry force=false so the reset happens exactly once.
func (s *Scheduler) Trigger(submissionID string, force bool) error {
	return s.publish(Task{SubmissionID: submissionID, ForceRegenerate: force})
}

func (s *Scheduler) publish(task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if _, err := s.js.Publish(subjectName, payload); err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

// Start attaches the durable consumer. Handlers run until the context is
// cancelled; Stop drains the subscription.
func (s *Scheduler) Start(ctx context.Context) error {
	subscription, err := s.js.Subscribe(subjectName, func(msg *nats.Msg) {
		s.handle(ctx, msg)
	},
		nats.Durable(consumerName),
		nats.ManualAck(),
		nats.AckWait(2*time.Minute),
		nats.MaxDeliver(-1),
	)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.subscription = subscription
	s.logger.Info().Str("subject", subjectName).Msg("pipeline consumer started")
	return nil
}

func (s *Scheduler) Stop() {
	if s.subscription != nil {
		if err := s.subscription.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain pipeline subscription")
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, msg *nats.Msg) {
	var task Task
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		s.logger.Error().Err(err).Msg("dropping malformed task")
		s.term(msg)
		return
	}

	// Later deliveries of the same message continue where the previous one
	// left off, so the attempt number is simply the redelivery count.
	if meta, metaErr := msg.Metadata(); metaErr == nil {
		task.Attempt += int(meta.NumDelivered) - 1
	}

	logger := s.logger.With().
		Str("submission_id", task.SubmissionID).
		Int("attempt", task.Attempt).
		Logger()

	outcome, err := s.processor.Process(ctx, task)
	switch {
	case err == nil && outcome.Done:
		s.ack(msg, logger)

	case err == nil:
		s.nak(msg, outcome.RunAgainAfter, logger)

	case IsFatal(err):
		logger.Error().Err(err).Msg("pipeline task failed permanently")
		s.term(msg)

	default:
		logger.Warn().Err(err).Msg("pipeline task failed, redelivering")
		s.nak(msg, transientWait, logger)
	}
}

func (s *Scheduler) ack(msg *nats.Msg, logger zerolog.Logger) {
	if err := msg.Ack(); err != nil {
		logger.Warn().Err(err).Msg("ack failed")
	}
}

func (s *Scheduler) nak(msg *nats.Msg, delay time.Duration, logger zerolog.Logger) {
	if err := msg.NakWithDelay(delay); err != nil {
		logger.Warn().Err(err).Msg("nak failed")
	}
}

func (s *Scheduler) term(msg *nats.Msg) {
	if err := msg.Term(); err != nil {
		s.logger.Warn().Err(err).Msg("term failed")
	}
}
