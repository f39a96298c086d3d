package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatwire/chatwire/internal/identifier"
	"github.com/chatwire/chatwire/internal/webhook"
)

// Classification is the relational shape of a normalized message delivery.
type Classification string

const (
	// ClassOutgoingCompany marks a message sent from the channel's own
	// number, observed through the webhook stream.
	ClassOutgoingCompany Classification = "outgoing_company"
	// ClassIncomingGroup marks a message addressed to a group chat.
	ClassIncomingGroup Classification = "incoming_group"
	// ClassIncomingDirect marks the default external-to-company message.
	ClassIncomingDirect Classification = "incoming_direct"
)

// Resolution is the resolved identity state for one delivery, threaded as a
// value through the materializer. Contact and Binding always refer to the
// conversation's external contact.
type Resolution struct {
	Classification Classification
	Contact        Contact
	Binding        Binding
	// CompanyContact is set for outgoing messages and becomes the
	// sender-of-record.
	CompanyContact *Contact
	// GroupContact is set for group messages; it is name-only and never
	// phone-identified.
	GroupContact *Contact
}

// IdentityResolver turns canonical contact descriptors into durable records,
// reusing existing bindings to guarantee idempotency across redeliveries.
type IdentityResolver struct {
	channelID     string
	channelPhone  string
	channelNumber string
	contacts      ContactStore
	bindings      BindingStore
	avatars       AvatarScheduler
	avatarMaxAge  time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewIdentityResolver creates an IdentityResolver for one channel.
// channelPhone is the channel's own number in any format; avatarMaxAge is
// how recent an attached avatar must be to skip a refresh.
func NewIdentityResolver(
	log *slog.Logger,
	channelID, channelPhone string,
	contacts ContactStore,
	bindings BindingStore,
	avatars AvatarScheduler,
	avatarMaxAge time.Duration,
) *IdentityResolver {
	if log == nil {
		log = slog.Default()
	}
	if avatarMaxAge <= 0 {
		avatarMaxAge = 24 * time.Hour
	}
	return &IdentityResolver{
		channelID:     channelID,
		channelPhone:  channelPhone,
		channelNumber: identifier.ExtractNumber(channelPhone),
		contacts:      contacts,
		bindings:      bindings,
		avatars:       avatars,
		avatarMaxAge:  avatarMaxAge,
		logger:        log.With(slog.String("component", "identity_resolver")),
		now:           time.Now,
	}
}

// Resolve classifies the delivery and resolves or creates all contact and
// binding records it needs. Receipts never reach this point.
func (r *IdentityResolver) Resolve(ctx context.Context, result webhook.Result) (Resolution, error) {
	switch {
	case r.fromCompany(result.From):
		return r.resolveOutgoing(ctx, result)
	case identifier.IsGroup(result.To.Identifier):
		return r.resolveGroup(ctx, result)
	default:
		return r.resolveDirect(ctx, result)
	}
}

// fromCompany reports whether the sending descriptor is the channel itself.
func (r *IdentityResolver) fromCompany(from webhook.Contact) bool {
	fromNumber := identifier.ExtractNumber(from.Identifier)
	return fromNumber != "" && fromNumber == r.channelNumber
}

func (r *IdentityResolver) resolveOutgoing(ctx context.Context, result webhook.Result) (Resolution, error) {
	r.logger.Debug("outgoing message from company number")

	// The recipient owns the conversation.
	contact, binding, err := r.resolveBinding(ctx, result.To, "")
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve recipient: %w", err)
	}
	r.maybeScheduleAvatar(ctx, contact, result.To)

	// The company identity is a separate binding; its stored phone number
	// is always the channel's canonical number.
	company, _, err := r.resolveBinding(ctx, result.From, r.channelPhone)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve company contact: %w", err)
	}

	return Resolution{
		Classification: ClassOutgoingCompany,
		Contact:        contact,
		Binding:        binding,
		CompanyContact: &company,
	}, nil
}

func (r *IdentityResolver) resolveGroup(ctx context.Context, result webhook.Result) (Resolution, error) {
	r.logger.Debug("incoming message to group", slog.String("group", result.To.Identifier))

	contact, binding, err := r.resolveBinding(ctx, result.From, "")
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve group sender: %w", err)
	}
	contact = r.refreshDisplayName(ctx, contact, result.From)
	r.maybeScheduleAvatar(ctx, contact, result.From)

	group, _, err := r.resolveBinding(ctx, result.To, "")
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve group contact: %w", err)
	}

	return Resolution{
		Classification: ClassIncomingGroup,
		Contact:        contact,
		Binding:        binding,
		GroupContact:   &group,
	}, nil
}

func (r *IdentityResolver) resolveDirect(ctx context.Context, result webhook.Result) (Resolution, error) {
	contact, binding, err := r.resolveBinding(ctx, result.From, "")
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve sender: %w", err)
	}
	contact = r.refreshDisplayName(ctx, contact, result.From)
	r.maybeScheduleAvatar(ctx, contact, result.From)

	return Resolution{
		Classification: ClassIncomingDirect,
		Contact:        contact,
		Binding:        binding,
	}, nil
}

// resolveBinding is the lookup-before-create procedure shared by all
// classification paths. An existing binding short-circuits to its contact;
// a lost create race re-fetches the winner's records. phoneOverride, when
// set, replaces the descriptor's phone number on newly created contacts.
func (r *IdentityResolver) resolveBinding(ctx context.Context, desc webhook.Contact, phoneOverride string) (Contact, Binding, error) {
	if strings.TrimSpace(desc.Identifier) == "" {
		return Contact{}, Binding{}, fmt.Errorf("contact descriptor has no identifier")
	}

	sourceID := strings.TrimSpace(desc.SourceID)
	if sourceID == "" {
		// No natural identifier on this channel; generate a stable-enough
		// token so the binding can still be created.
		sourceID = uuid.NewString()
	}

	binding, err := r.bindings.FindBinding(ctx, r.channelID, sourceID)
	switch {
	case err == nil:
		contact, err := r.contacts.FindContactByID(ctx, binding.ContactID)
		if err != nil {
			return Contact{}, Binding{}, fmt.Errorf("load bound contact %s: %w", binding.ContactID, err)
		}
		return contact, binding, nil
	case !errors.Is(err, ErrBindingNotFound):
		return Contact{}, Binding{}, fmt.Errorf("find binding: %w", err)
	}

	phone := desc.PhoneNumber
	if phoneOverride != "" {
		phone = phoneOverride
	}
	contact, err := r.contacts.CreateContact(ctx, ContactAttributes{
		Name:        desc.DisplayName,
		PhoneNumber: phone,
		Identifier:  desc.Identifier,
	})
	if err != nil {
		return Contact{}, Binding{}, fmt.Errorf("create contact: %w", err)
	}

	binding, err = r.bindings.CreateBinding(ctx, r.channelID, sourceID, contact.ID)
	if errors.Is(err, ErrBindingExists) {
		// A concurrent delivery created the binding first; adopt its records.
		winner, findErr := r.bindings.FindBinding(ctx, r.channelID, sourceID)
		if findErr != nil {
			return Contact{}, Binding{}, fmt.Errorf("refetch binding after race: %w", findErr)
		}
		winnerContact, findErr := r.contacts.FindContactByID(ctx, winner.ContactID)
		if findErr != nil {
			return Contact{}, Binding{}, fmt.Errorf("load winning contact: %w", findErr)
		}
		return winnerContact, winner, nil
	}
	if err != nil {
		return Contact{}, Binding{}, fmt.Errorf("create binding: %w", err)
	}
	return contact, binding, nil
}

// refreshDisplayName overwrites the stored name only when the push name is
// real (not a formatted number) and the current name is still just the
// contact's phone number. A user-entered name is never clobbered.
func (r *IdentityResolver) refreshDisplayName(ctx context.Context, contact Contact, desc webhook.Contact) Contact {
	candidate := strings.TrimSpace(desc.DisplayName)
	if candidate == "" || looksLikePhoneNumber(candidate) {
		return contact
	}
	if candidate == contact.Name || !looksLikePhoneNumber(contact.Name) {
		return contact
	}
	updated, err := r.contacts.UpdateContact(ctx, contact.ID, ContactUpdate{Name: &candidate})
	if err != nil {
		r.logger.Warn("refresh contact name failed",
			slog.String("contact_id", contact.ID),
			slog.Any("error", err),
		)
		return contact
	}
	return updated
}

// maybeScheduleAvatar applies the avatar refresh policy. All failures are
// logged and swallowed; avatar work never affects message processing.
func (r *IdentityResolver) maybeScheduleAvatar(ctx context.Context, contact Contact, desc webhook.Contact) {
	id := strings.TrimSpace(contact.Identifier)
	if id == "" {
		id = strings.TrimSpace(desc.Identifier)
		if id == "" {
			r.logger.Debug("no identifier for avatar refresh", slog.String("contact_id", contact.ID))
			return
		}
		if _, err := r.contacts.UpdateContact(ctx, contact.ID, ContactUpdate{Identifier: &id}); err != nil {
			r.logger.Warn("backfill contact identifier failed",
				slog.String("contact_id", contact.ID),
				slog.Any("error", err),
			)
			return
		}
	}
	if contact.HasAvatar() && r.now().Sub(contact.AvatarUpdatedAt) < r.avatarMaxAge {
		return
	}
	if r.avatars == nil {
		return
	}
	if err := r.avatars.ScheduleAvatarFetch(ctx, contact.ID, id); err != nil {
		r.logger.Warn("schedule avatar fetch failed",
			slog.String("contact_id", contact.ID),
			slog.Any("error", err),
		)
	}
}

// looksLikePhoneNumber reports whether a display name is nothing but a
// formatted phone number.
func looksLikePhoneNumber(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}
	digits := false
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits = true
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits
}
