package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/audit"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/pubsub"
)

// TransitionPublisher forwards state transitions to the audit sink.
type TransitionPublisher interface {
	Publish(ctx context.Context, t *audit.StateTransition) error
}

type transitionPublisher struct {
	pubsub pubsub.Publisher
	topic  string
	logger *logger.Logger
}

func NewTransitionPublisher(cfg *config.Configuration, ps pubsub.Publisher, log *logger.Logger) TransitionPublisher {
	return &transitionPublisher{
		pubsub: ps,
		topic:  cfg.Events.TransitionTopic,
		logger: log,
	}
}

func (p *transitionPublisher) Publish(ctx context.Context, t *audit.StateTransition) error {
	if t == nil {
		return nil
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode state transition").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(t.ID, payload)
	msg.Metadata.Set("tenant_id", t.TenantID)
	msg.Metadata.Set("entity_type", string(t.EntityType))
	msg.Metadata.Set("entity_id", t.EntityID)

	if err := p.pubsub.Publish(ctx, p.topic, msg); err != nil {
		p.logger.Errorw("failed to publish state transition",
			"transition_id", t.ID,
			"entity_type", t.EntityType,
			"entity_id", t.EntityID,
			"error", err,
		)
		return ierr.WithError(err).
			WithHint("Failed to publish state transition").
			Mark(ierr.ErrSystem)
	}

	p.logger.Debugw("published state transition",
		"transition_id", t.ID,
		"entity_type", t.EntityType,
		"entity_id", t.EntityID,
		"from", t.FromStatus,
		"to", t.ToStatus,
	)
	return nil
}

// Decode reads a transition back from a published message.
func Decode(msg *message.Message) (*audit.StateTransition, error) {
	var t audit.StateTransition
	if err := json.Unmarshal(msg.Payload, &t); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid state transition payload").
			Mark(ierr.ErrValidation)
	}
	return &t, nil
}

// LogTransitions drains the transition topic into the structured log until
// ctx is done. It is the default audit consumer when no external sink is wired.
func LogTransitions(ctx context.Context, cfg *config.Configuration, sub pubsub.Subscriber, log *logger.Logger) error {
	messages, err := sub.Subscribe(ctx, cfg.Events.TransitionTopic)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to subscribe to state transitions").
			Mark(ierr.ErrSystem)
	}

	go func() {
		for msg := range messages {
			t, err := Decode(msg)
			if err != nil {
				log.Warnw("dropping malformed state transition", "message_uuid", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			log.Infow("state transition",
				"tenant_id", t.TenantID,
				"entity_type", t.EntityType,
				"entity_id", t.EntityID,
				"from", t.FromStatus,
				"to", t.ToStatus,
				"amounts", t.Amounts,
			)
			msg.Ack()
		}
	}()
	return nil
}
