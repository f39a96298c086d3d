// Package webhook turns raw gateway webhook payloads into a canonical,
// de-duplicated intermediate representation. The gateway emits at least three
// overlapping wire shapes (legacy flat fields, nested message objects, and
// nested receipt events); every accessor here encodes the exact fallback
// order the shapes require.
package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// EventKind is the semantic kind of a webhook delivery.
type EventKind string

const (
	EventMessage           EventKind = "message"
	EventGroupMessage      EventKind = "group.message"
	EventReceipt           EventKind = "message.ack"
	EventGroupParticipants EventKind = "group.participants"
	EventNewsletter        EventKind = "newsletter"
	EventUnknown           EventKind = "unknown"
)

// MessageKind tags the content variant of a canonical message.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindDocument MessageKind = "document"
	KindSticker  MessageKind = "sticker"
	KindLocation MessageKind = "location"
	KindContacts MessageKind = "contacts"
	KindReaction MessageKind = "reaction"
)

// Status is a delivery status reported by a receipt event.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Contact is a transient contact descriptor projected from one payload.
// It is never persisted directly; the identity resolver uses it to find or
// create the durable contact and binding records.
type Contact struct {
	// SourceID is the idempotency key candidate: the extracted number for
	// direct chats, the full identifier for groups.
	SourceID    string
	Identifier  string
	DisplayName string
	// PhoneNumber is empty for contacts with no singular phone identity
	// (group chats).
	PhoneNumber string
}

// Media describes an attachment extracted from a message payload.
type Media struct {
	// Reference is the gateway media path or, for legacy payloads, the
	// full download URL.
	Reference string
	MimeType  string
	Caption   string
	Filename  string
}

// Location is a shared geographic position.
type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
	URL       string
}

// ContactCard is a shared contact (vCard).
type ContactCard struct {
	FormattedName string
	VCard         string
}

// Message is the canonical message record produced by the normalizer.
// Exactly one content variant is populated according to Kind.
type Message struct {
	ExternalID        string
	SenderRef         string
	RecipientRef      string
	Timestamp         int64
	Kind              MessageKind
	Text              string
	ButtonText        string
	ButtonReplyTitle  string
	ListReplyTitle    string
	Media             *Media
	Location          *Location
	ContactCards      []ContactCard
	ReplyToExternalID string
}

// StatusUpdate correlates a delivery status to a previously sent message.
type StatusUpdate struct {
	ExternalMessageID string
	Status            Status
	Timestamp         int64
}

// Result is the outcome of normalizing one webhook delivery: either a
// contact pair with messages, a list of status updates, or empty.
type Result struct {
	Kind     EventKind
	From     Contact
	To       Contact
	Messages []Message
	Statuses []StatusUpdate
}

// IsEmpty reports whether the delivery produced nothing actionable.
func (r Result) IsEmpty() bool {
	return len(r.Messages) == 0 && len(r.Statuses) == 0
}

// FlexTime decodes the gateway's timestamp variants: RFC3339 strings,
// numeric seconds, and numeric strings.
type FlexTime struct {
	unix int64
}

// UnmarshalJSON accepts a JSON number, a numeric string, or an RFC3339
// string. Unparseable values decode to zero rather than failing the payload.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.unix = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			t.unix = 0
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.unix = n
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.unix = parsed.Unix()
			return nil
		}
		t.unix = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	t.unix = int64(n)
	return nil
}

// Unix returns the decoded value in Unix seconds, or zero when absent.
func (t FlexTime) Unix() int64 { return t.unix }

// IsZero reports whether no usable timestamp was decoded.
func (t FlexTime) IsZero() bool { return t.unix == 0 }

// FlexString decodes a JSON string or number into a string.
type FlexString string

// UnmarshalJSON accepts either representation; numbers keep their literal form.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = FlexString(value)
		return nil
	}
	*s = FlexString(string(data))
	return nil
}

// String returns the decoded value.
func (s FlexString) String() string { return string(s) }
