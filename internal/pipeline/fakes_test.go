package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chatwire/chatwire/internal/webhook"
)

type memContactStore struct {
	mu       sync.Mutex
	seq      int
	contacts map[string]Contact
	failNext error
}

func newMemContactStore() *memContactStore {
	return &memContactStore{contacts: map[string]Contact{}}
}

func (s *memContactStore) FindContactByID(_ context.Context, id string) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[id]
	if !ok {
		return Contact{}, ErrContactNotFound
	}
	return contact, nil
}

func (s *memContactStore) CreateContact(_ context.Context, attrs ContactAttributes) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return Contact{}, err
	}
	s.seq++
	contact := Contact{
		ID:          fmt.Sprintf("contact-%d", s.seq),
		Name:        attrs.Name,
		PhoneNumber: attrs.PhoneNumber,
		Identifier:  attrs.Identifier,
		CreatedAt:   time.Now(),
	}
	s.contacts[contact.ID] = contact
	return contact, nil
}

func (s *memContactStore) UpdateContact(_ context.Context, id string, update ContactUpdate) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[id]
	if !ok {
		return Contact{}, ErrContactNotFound
	}
	if update.Name != nil {
		contact.Name = *update.Name
	}
	if update.Identifier != nil {
		contact.Identifier = *update.Identifier
	}
	contact.UpdatedAt = time.Now()
	s.contacts[id] = contact
	return contact, nil
}

func (s *memContactStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contacts)
}

type memBindingStore struct {
	mu       sync.Mutex
	seq      int
	bindings map[string]Binding
	// raceOnCreate simulates losing the unique-index race once.
	raceOnCreate *Binding
}

func newMemBindingStore() *memBindingStore {
	return &memBindingStore{bindings: map[string]Binding{}}
}

func bindingKey(channelID, sourceID string) string {
	return channelID + "|" + sourceID
}

func (s *memBindingStore) FindBinding(_ context.Context, channelID, sourceID string) (Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, ok := s.bindings[bindingKey(channelID, sourceID)]
	if !ok {
		return Binding{}, ErrBindingNotFound
	}
	return binding, nil
}

func (s *memBindingStore) CreateBinding(_ context.Context, channelID, sourceID, contactID string) (Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bindingKey(channelID, sourceID)
	if s.raceOnCreate != nil {
		s.bindings[key] = *s.raceOnCreate
		s.raceOnCreate = nil
		return Binding{}, ErrBindingExists
	}
	if _, exists := s.bindings[key]; exists {
		return Binding{}, ErrBindingExists
	}
	s.seq++
	binding := Binding{
		ID:        fmt.Sprintf("binding-%d", s.seq),
		ChannelID: channelID,
		SourceID:  sourceID,
		ContactID: contactID,
		CreatedAt: time.Now(),
	}
	s.bindings[key] = binding
	return binding, nil
}

func (s *memBindingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bindings)
}

type memConversationStore struct {
	mu            sync.Mutex
	seq           int
	conversations map[string]Conversation
	messages      []StoredMessage
	statusUpdates map[string]webhook.Status
	failStatusFor string
}

func newMemConversationStore() *memConversationStore {
	return &memConversationStore{
		conversations: map[string]Conversation{},
		statusUpdates: map[string]webhook.Status{},
	}
}

func (s *memConversationStore) CreateOrReuseConversation(_ context.Context, binding Binding) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[binding.ID]; ok {
		return conv, nil
	}
	s.seq++
	conv := Conversation{
		ID:        fmt.Sprintf("conv-%d", s.seq),
		BindingID: binding.ID,
		ContactID: binding.ContactID,
	}
	s.conversations[binding.ID] = conv
	return conv, nil
}

func (s *memConversationStore) CreateMessage(_ context.Context, msg StoredMessage) (StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ExternalID != "" {
		for _, existing := range s.messages {
			if existing.ConversationID == msg.ConversationID && existing.ExternalID == msg.ExternalID {
				return StoredMessage{}, ErrMessageExists
			}
		}
	}
	msg.ID = fmt.Sprintf("msg-%d", len(s.messages)+1)
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *memConversationStore) UpdateMessageStatus(_ context.Context, externalID string, status webhook.Status, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if externalID == s.failStatusFor {
		return fmt.Errorf("status update rejected for %s", externalID)
	}
	s.statusUpdates[externalID] = status
	return nil
}

type fakeAvatarScheduler struct {
	mu        sync.Mutex
	scheduled []string
	err       error
}

func (f *fakeAvatarScheduler) ScheduleAvatarFetch(_ context.Context, contactID, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, contactID+"|"+identifier)
	return nil
}

func (f *fakeAvatarScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}
