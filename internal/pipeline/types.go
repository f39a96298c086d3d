// Package pipeline resolves canonical webhook results into durable contact,
// binding, conversation, and message records. Stores are external
// collaborators; the pipeline only depends on the narrow interfaces below.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/chatwire/chatwire/internal/webhook"
)

// Direction tells whether a message entered or left the company's channel.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Contact is the durable identity record owned by the contact store.
type Contact struct {
	ID              string
	Name            string
	PhoneNumber     string
	Identifier      string
	AvatarURL       string
	AvatarUpdatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasAvatar reports whether an avatar has ever been attached.
func (c Contact) HasAvatar() bool { return c.AvatarURL != "" }

// Binding maps a (channel, source id) pair to a contact. At most one binding
// exists per pair; it is the idempotency anchor for webhook retries.
type Binding struct {
	ID        string
	ChannelID string
	SourceID  string
	ContactID string
	CreatedAt time.Time
}

// Conversation groups messages exchanged through one binding.
type Conversation struct {
	ID        string
	BindingID string
	ContactID string
	CreatedAt time.Time
}

// StoredMessage is the durable message record.
type StoredMessage struct {
	ID                string
	ConversationID    string
	SenderContactID   string
	Direction         Direction
	Kind              webhook.MessageKind
	Body              string
	ExternalID        string
	Status            webhook.Status
	MediaReference    string
	MediaMimeType     string
	MediaFilename     string
	ReplyToExternalID string
	SentAt            time.Time
	CreatedAt         time.Time
}

// ContactAttributes is the input for creating or updating a contact.
type ContactAttributes struct {
	Name        string
	PhoneNumber string
	Identifier  string
}

// ContactUpdate carries partial contact changes; nil fields are untouched.
type ContactUpdate struct {
	Name       *string
	Identifier *string
}

// Store lookup errors shared by all implementations.
var (
	ErrContactNotFound = errors.New("contact not found")
	ErrBindingNotFound = errors.New("binding not found")
	// ErrBindingExists is returned when a concurrent delivery won the
	// create race; the caller re-fetches the winner's record.
	ErrBindingExists = errors.New("binding already exists")
	// ErrMessageExists marks an external-id duplicate; the message was
	// already materialized by an earlier delivery.
	ErrMessageExists = errors.New("message already exists")
)

// ContactStore provides the contact operations the pipeline needs.
type ContactStore interface {
	FindContactByID(ctx context.Context, id string) (Contact, error)
	CreateContact(ctx context.Context, attrs ContactAttributes) (Contact, error)
	UpdateContact(ctx context.Context, id string, update ContactUpdate) (Contact, error)
}

// BindingStore provides binding lookup and creation. CreateBinding must be
// backed by a uniqueness constraint on (channel id, source id) and return
// ErrBindingExists when a concurrent create won.
type BindingStore interface {
	FindBinding(ctx context.Context, channelID, sourceID string) (Binding, error)
	CreateBinding(ctx context.Context, channelID, sourceID, contactID string) (Binding, error)
}

// ConversationStore provides conversation reuse, message creation, and
// receipt status updates.
type ConversationStore interface {
	CreateOrReuseConversation(ctx context.Context, binding Binding) (Conversation, error)
	CreateMessage(ctx context.Context, msg StoredMessage) (StoredMessage, error)
	UpdateMessageStatus(ctx context.Context, externalID string, status webhook.Status, timestamp int64) error
}

// AvatarScheduler enqueues an asynchronous avatar fetch. Fire and forget:
// the pipeline never blocks on or fails from avatar work.
type AvatarScheduler interface {
	ScheduleAvatarFetch(ctx context.Context, contactID, identifier string) error
}
