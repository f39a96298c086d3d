package webhook

import (
	"strings"

	"github.com/chatwire/chatwire/internal/identifier"
)

// Classify determines the semantic event kind of an unwrapped payload.
// An explicit event field wins outright; otherwise the kind is inferred
// from the from-identifier's domain suffix. Payloads with no from field
// default to a direct message.
func Classify(p *Payload) EventKind {
	if p == nil {
		return EventUnknown
	}
	if event := strings.TrimSpace(p.Event); event != "" {
		switch EventKind(event) {
		case EventMessage, EventGroupMessage, EventReceipt, EventGroupParticipants:
			return EventKind(event)
		default:
			return EventUnknown
		}
	}
	return classifyFromIdentifier(p.From)
}

func classifyFromIdentifier(from string) EventKind {
	if strings.TrimSpace(from) == "" {
		return EventMessage
	}
	id := identifier.To(from)
	if strings.TrimSpace(id) == "" {
		return EventMessage
	}
	switch {
	case identifier.IsDirect(id):
		return EventMessage
	case identifier.IsGroup(id):
		return EventGroupMessage
	case identifier.IsNewsletter(id):
		// Broadcast channels are not handled; treated as unknown so the
		// pipeline skips them without side effects.
		return EventUnknown
	default:
		return EventMessage
	}
}
