package pipeline

import (
	"strings"
	"time"

	"github.com/chatwire/chatwire/internal/webhook"
)

const (
	locationPlaceholder = "Location shared"
	contactPlaceholder  = "Contact shared"
)

// Materialize builds the durable message record from a canonical message and
// the already-decided resolution. Direction and sender are taken from the
// classification verbatim; nothing is re-derived here.
func Materialize(msg webhook.Message, res Resolution, conv Conversation) StoredMessage {
	stored := StoredMessage{
		ConversationID:    conv.ID,
		Direction:         DirectionIncoming,
		SenderContactID:   res.Contact.ID,
		Kind:              storedKind(msg.Kind),
		Body:              contentBody(msg),
		ExternalID:        strings.TrimSpace(msg.ExternalID),
		ReplyToExternalID: msg.ReplyToExternalID,
		SentAt:            time.Unix(msg.Timestamp, 0).UTC(),
	}
	if res.Classification == ClassOutgoingCompany && res.CompanyContact != nil {
		stored.Direction = DirectionOutgoing
		stored.SenderContactID = res.CompanyContact.ID
		stored.Status = webhook.StatusSent
	}
	if msg.Media != nil {
		stored.MediaReference = msg.Media.Reference
		stored.MediaMimeType = msg.Media.MimeType
		stored.MediaFilename = msg.Media.Filename
		if stored.Body == "" {
			stored.Body = msg.Media.Caption
		}
	}
	return stored
}

// storedKind collapses reactions into text; they carry the reacted-to text
// as body and the target id as reply context, so downstream they are just
// quoted replies.
func storedKind(kind webhook.MessageKind) webhook.MessageKind {
	if kind == webhook.KindReaction {
		return webhook.KindText
	}
	return kind
}

// contentBody resolves the display body. First non-empty wins: text, button
// reply text, interactive button-reply title, interactive list-reply title,
// contact-share formatted name. Location and contact shares that resolve to
// nothing get a fixed placeholder.
func contentBody(msg webhook.Message) string {
	for _, candidate := range []string{
		msg.Text,
		msg.ButtonText,
		msg.ButtonReplyTitle,
		msg.ListReplyTitle,
		firstFormattedName(msg.ContactCards),
	} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	switch msg.Kind {
	case webhook.KindLocation:
		return locationPlaceholder
	case webhook.KindContacts:
		return contactPlaceholder
	}
	return ""
}

func firstFormattedName(cards []webhook.ContactCard) string {
	for _, card := range cards {
		if strings.TrimSpace(card.FormattedName) != "" {
			return card.FormattedName
		}
	}
	return ""
}
