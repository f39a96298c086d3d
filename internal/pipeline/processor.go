package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chatwire/chatwire/internal/webhook"
)

// Outcome summarizes what one webhook delivery produced.
type Outcome struct {
	Event           webhook.EventKind
	Skipped         bool
	Messages        []StoredMessage
	StatusesApplied int
}

// Processor runs the full ingestion flow for one delivery: normalize,
// resolve identity, materialize messages or apply receipt statuses.
// It holds no per-delivery state; deliveries may be processed concurrently.
type Processor struct {
	normalizer    *webhook.Normalizer
	resolver      *IdentityResolver
	conversations ConversationStore
	logger        *slog.Logger
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(log *slog.Logger, normalizer *webhook.Normalizer, resolver *IdentityResolver, conversations ConversationStore) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		normalizer:    normalizer,
		resolver:      resolver,
		conversations: conversations,
		logger:        log.With(slog.String("component", "pipeline")),
	}
}

// Process handles one decoded webhook body. Malformed or unknown payloads
// are a silent skip: webhooks are noisy and a bad delivery must not break
// the ingestion stream. Per-item collaborator failures are logged and the
// remaining items still get their attempt.
func (p *Processor) Process(ctx context.Context, payload *webhook.Payload) Outcome {
	result := p.normalizer.Normalize(payload)
	if result.IsEmpty() {
		return Outcome{Event: result.Kind, Skipped: true}
	}

	if len(result.Statuses) > 0 {
		return p.applyStatuses(ctx, result)
	}
	return p.materializeMessages(ctx, result)
}

// applyStatuses updates every message id carried by a receipt. One failed
// update must not prevent attempting the others.
func (p *Processor) applyStatuses(ctx context.Context, result webhook.Result) Outcome {
	outcome := Outcome{Event: result.Kind}
	for _, status := range result.Statuses {
		err := p.conversations.UpdateMessageStatus(ctx, status.ExternalMessageID, status.Status, status.Timestamp)
		if err != nil {
			p.logger.Warn("update message status failed",
				slog.String("external_id", status.ExternalMessageID),
				slog.String("status", string(status.Status)),
				slog.Any("error", err),
			)
			continue
		}
		outcome.StatusesApplied++
	}
	return outcome
}

func (p *Processor) materializeMessages(ctx context.Context, result webhook.Result) Outcome {
	outcome := Outcome{Event: result.Kind}

	resolution, err := p.resolver.Resolve(ctx, result)
	if err != nil {
		p.logger.Error("identity resolution failed",
			slog.String("from", result.From.Identifier),
			slog.Any("error", err),
		)
		outcome.Skipped = true
		return outcome
	}

	conv, err := p.conversations.CreateOrReuseConversation(ctx, resolution.Binding)
	if err != nil {
		p.logger.Error("conversation resolution failed",
			slog.String("binding_id", resolution.Binding.ID),
			slog.Any("error", err),
		)
		outcome.Skipped = true
		return outcome
	}

	for _, msg := range result.Messages {
		stored := Materialize(msg, resolution, conv)
		created, err := p.conversations.CreateMessage(ctx, stored)
		if errors.Is(err, ErrMessageExists) {
			p.logger.Debug("duplicate message skipped", slog.String("external_id", stored.ExternalID))
			continue
		}
		if err != nil {
			p.logger.Warn("create message failed",
				slog.String("conversation_id", conv.ID),
				slog.String("external_id", stored.ExternalID),
				slog.Any("error", err),
			)
			continue
		}
		outcome.Messages = append(outcome.Messages, created)
	}
	return outcome
}
