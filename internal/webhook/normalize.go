package webhook

import (
	"log/slog"
	"strings"
	"time"

	"github.com/chatwire/chatwire/internal/identifier"
)

// Normalizer converts unwrapped payloads into canonical results. It is a
// pure transform: one payload in, one Result out, no store access.
type Normalizer struct {
	channelNumber string
	logger        *slog.Logger
	now           func() time.Time
}

// NewNormalizer creates a Normalizer for a channel identified by its own
// phone number (any format; digits are extracted).
func NewNormalizer(log *slog.Logger, channelPhone string) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{
		channelNumber: identifier.ExtractNumber(channelPhone),
		logger:        log.With(slog.String("component", "webhook_normalizer")),
		now:           time.Now,
	}
}

// ChannelNumber returns the channel's own number, digits only.
func (n *Normalizer) ChannelNumber() string { return n.channelNumber }

// Normalize classifies and normalizes one webhook delivery. Unknown events,
// group membership changes, and payloads without usable content yield an
// empty Result; the caller treats that as a deliberate no-op.
func (n *Normalizer) Normalize(outer *Payload) Result {
	if outer == nil {
		return Result{Kind: EventUnknown}
	}
	p := outer.Unwrap()
	kind := Classify(p)

	switch kind {
	case EventReceipt:
		return n.normalizeReceipt(outer)
	case EventMessage, EventGroupMessage:
		if !p.HasMessageContent() {
			n.logger.Debug("skipping payload without message content", slog.String("event", string(kind)))
			return Result{Kind: kind}
		}
		return n.normalizeMessage(p, kind)
	case EventGroupParticipants:
		// Membership changes carry no chat content; creating conversations
		// from them would leave empty threads behind.
		n.logger.Debug("skipping group participants event")
		return Result{Kind: kind}
	default:
		n.logger.Debug("skipping unknown event", slog.String("event", p.Event))
		return Result{Kind: EventUnknown}
	}
}

func (n *Normalizer) normalizeMessage(p *Payload, kind EventKind) Result {
	from := n.contactFrom(p)
	to := n.contactTo(p)

	msg, ok := n.extractMessage(p)
	if !ok {
		n.logger.Debug("skipping message without valid content")
		return Result{Kind: kind}
	}

	return Result{
		Kind:     kind,
		From:     from,
		To:       to,
		Messages: []Message{msg},
	}
}

// contactFrom builds the sending-side descriptor: identifier from the
// "from" selection, display name from the push name with the formatted
// number as fallback.
func (n *Normalizer) contactFrom(p *Payload) Contact {
	id := identifier.From(p.From)
	number := identifier.ExtractNumber(id)
	phone := formatPhone(number)
	name := strings.TrimSpace(p.Pushname)
	if name == "" {
		name = phone
	}
	return Contact{
		SourceID:    number,
		Identifier:  id,
		DisplayName: name,
		PhoneNumber: phone,
	}
}

// contactTo builds the receiving-side descriptor. With an "A in B" routing
// annotation the destination is the annotated side; otherwise an incoming
// message is addressed to the channel's own number, unless the sender is the
// channel itself (self-addressed edge case, best effort, falls back to the
// "from" selection).
func (n *Normalizer) contactTo(p *Payload) Contact {
	var id string
	if identifier.HasRouting(p.From) {
		id = identifier.To(p.From)
	} else if identifier.ExtractNumber(p.From) == n.channelNumber {
		id = identifier.To(p.From)
	} else {
		id = n.channelNumber + identifier.DirectSuffix
	}

	number := identifier.ExtractNumber(id)
	phone := formatPhone(number)

	contact := Contact{
		SourceID:    number,
		Identifier:  id,
		DisplayName: phone,
		PhoneNumber: phone,
	}
	if identifier.IsGroup(id) {
		// Group identifiers are non-numeric; the full identifier is the
		// only stable source id, and groups have no phone identity.
		contact.SourceID = id
		contact.PhoneNumber = ""
	}
	return contact
}

func (n *Normalizer) extractMessage(p *Payload) (Message, bool) {
	msg := Message{
		ExternalID:   p.ExternalMessageID(),
		SenderRef:    p.SenderID,
		RecipientRef: p.ChatID,
		Timestamp:    n.timestamp(p),
		Kind:         inferKind(p),
	}

	switch msg.Kind {
	case KindText:
		msg.Text = p.BodyText()
	case KindReaction:
		// Reactions render as quoted replies: the body is the reacted-to
		// message's text and the reply context points at its id.
		msg.Text = p.Reaction.Message
		msg.ReplyToExternalID = p.Reaction.ID.String()
	case KindImage, KindVideo, KindAudio, KindDocument, KindSticker:
		msg.Media = extractMedia(p, msg.Kind)
	case KindLocation:
		msg.Location = extractLocation(p)
	case KindContacts:
		msg.ContactCards = extractContactCards(p)
	}

	if replyID := p.ReplyContextID(); replyID != "" {
		msg.ReplyToExternalID = replyID
	}

	if !hasContent(msg) {
		return Message{}, false
	}
	return msg, true
}

// hasContent guards against hollow messages: no text, media, location, or
// contact share means nothing downstream could render.
func hasContent(msg Message) bool {
	if strings.TrimSpace(msg.Text) != "" {
		return true
	}
	if msg.Media != nil && strings.TrimSpace(msg.Media.Reference) != "" {
		return true
	}
	if msg.Location != nil {
		return true
	}
	return len(msg.ContactCards) > 0
}

func (n *Normalizer) timestamp(p *Payload) int64 {
	if !p.Timestamp.IsZero() {
		return p.Timestamp.Unix()
	}
	return n.now().Unix()
}

// inferKind resolves the message kind. An explicit type field wins; a
// reaction block takes precedence over everything else; media, location, and
// contact shares are detected from structured blocks with legacy flat-field
// fallbacks; text is the default.
func inferKind(p *Payload) MessageKind {
	if t := strings.TrimSpace(p.Type); t != "" {
		return MessageKind(t)
	}
	switch {
	case p.Reaction != nil:
		return KindReaction
	case p.Image != nil || p.ImageURL != "" || p.MediaType == "image":
		return KindImage
	case p.Video != nil || p.VideoURL != "" || p.MediaType == "video":
		return KindVideo
	case p.Audio != nil || p.AudioURL != "" || p.MediaType == "audio":
		return KindAudio
	case p.Document != nil || p.DocumentURL != "" || p.MediaType == "document":
		return KindDocument
	case p.Sticker != nil || p.StickerURL != "" || p.MediaType == "sticker":
		return KindSticker
	case p.Location != nil || (p.Latitude != nil && p.Longitude != nil):
		return KindLocation
	case p.Contact != nil || p.ContactVCard != "" || len(p.Contacts) > 0:
		return KindContacts
	default:
		return KindText
	}
}

func extractLocation(p *Payload) *Location {
	if p.Location != nil {
		loc := &Location{
			Name:    p.Location.Name,
			Address: p.Location.Address,
			URL:     p.Location.URL,
		}
		switch {
		case p.Location.DegreesLatitude != nil && p.Location.DegreesLongitude != nil:
			loc.Latitude = *p.Location.DegreesLatitude
			loc.Longitude = *p.Location.DegreesLongitude
		case p.Location.Latitude != nil && p.Location.Longitude != nil:
			loc.Latitude = *p.Location.Latitude
			loc.Longitude = *p.Location.Longitude
		}
		return loc
	}
	if p.Latitude == nil || p.Longitude == nil {
		return nil
	}
	return &Location{
		Latitude:  *p.Latitude,
		Longitude: *p.Longitude,
		Name:      p.LocationName,
		Address:   p.LocationAddress,
		URL:       p.LocationURL,
	}
}

func extractContactCards(p *Payload) []ContactCard {
	switch {
	case p.Contact != nil:
		return []ContactCard{{FormattedName: p.Contact.DisplayName, VCard: p.Contact.VCard}}
	case p.ContactVCard != "":
		return []ContactCard{{VCard: p.ContactVCard}}
	case len(p.Contacts) > 0:
		cards := make([]ContactCard, 0, len(p.Contacts))
		for _, share := range p.Contacts {
			cards = append(cards, ContactCard{FormattedName: share.Name.FormattedName, VCard: share.VCard})
		}
		return cards
	default:
		return nil
	}
}

// normalizeReceipt handles ack events, including the one-level nesting where
// the outer envelope repeats the event. Every id in the ids array becomes a
// separate status update sharing the mapped status and timestamp.
func (n *Normalizer) normalizeReceipt(outer *Payload) Result {
	receipt := outer
	ts := outer.Timestamp
	if outer.Payload != nil {
		if EventKind(strings.TrimSpace(outer.Payload.Event)) == EventReceipt {
			receipt = outer.Payload
			if receipt.Payload != nil {
				receipt = receipt.Payload
			}
			if !outer.Payload.Timestamp.IsZero() {
				ts = outer.Payload.Timestamp
			}
		} else {
			receipt = outer.Payload
		}
	}

	status := mapReceiptStatus(receipt.ReceiptType)
	tsUnix := ts.Unix()
	if tsUnix == 0 {
		tsUnix = n.now().Unix()
	}

	statuses := make([]StatusUpdate, 0, len(receipt.IDs))
	for _, id := range receipt.IDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		statuses = append(statuses, StatusUpdate{
			ExternalMessageID: id,
			Status:            status,
			Timestamp:         tsUnix,
		})
	}
	return Result{Kind: EventReceipt, Statuses: statuses}
}

// mapReceiptStatus maps the gateway receipt type to a delivery status,
// defaulting conservatively to delivered.
func mapReceiptStatus(receiptType string) Status {
	switch strings.ToLower(strings.TrimSpace(receiptType)) {
	case "read":
		return StatusRead
	case "sent":
		return StatusSent
	case "delivered":
		return StatusDelivered
	default:
		return StatusDelivered
	}
}

func formatPhone(number string) string {
	if number == "" {
		return ""
	}
	return "+" + number
}
