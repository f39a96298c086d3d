package webhook

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Payload is the decoded webhook body. The gateway is loose about shape:
// any field may be absent, the whole object may arrive wrapped under a
// "payload" key, and some fields moved between flat and nested positions
// across gateway versions. All of them are declared here; precedence between
// overlapping fields is encoded by the accessor methods.
type Payload struct {
	Event     string   `json:"event"`
	From      string   `json:"from"`
	Pushname  string   `json:"pushname"`
	SenderID  string   `json:"sender_id"`
	ChatID    string   `json:"chat_id"`
	Timestamp FlexTime `json:"timestamp"`

	// Nested envelope: webhook transports may wrap the body one level deep.
	Payload *Payload `json:"payload"`

	Type    string       `json:"type"`
	Message *MessageBody `json:"message"`
	Text    string       `json:"text"`
	Content string       `json:"content"`

	Reaction *ReactionBody `json:"reaction"`

	Image    *MediaBlock `json:"image"`
	Video    *MediaBlock `json:"video"`
	Audio    *MediaBlock `json:"audio"`
	Document *MediaBlock `json:"document"`
	Sticker  *MediaBlock `json:"sticker"`

	// Legacy flat media fields.
	ImageURL    string `json:"image_url"`
	VideoURL    string `json:"video_url"`
	AudioURL    string `json:"audio_url"`
	DocumentURL string `json:"document_url"`
	StickerURL  string `json:"sticker_url"`
	MediaURL    string `json:"media_url"`
	MediaType   string `json:"media_type"`
	MimeType    string `json:"mime_type"`
	Caption     string `json:"caption"`
	Filename    string `json:"filename"`

	Location        *LocationBlock `json:"location"`
	Latitude        *float64       `json:"latitude"`
	Longitude       *float64       `json:"longitude"`
	LocationName    string         `json:"location_name"`
	LocationAddress string         `json:"location_address"`
	LocationURL     string         `json:"location_url"`

	Contact      *ContactBlock  `json:"contact"`
	ContactVCard string         `json:"contact_vcard"`
	Contacts     []ContactShare `json:"contacts"`

	QuotedMessageID FlexString `json:"quoted_message_id"`
	InReplyTo       FlexString `json:"in_reply_to"`

	// Receipt fields.
	IDs         []string `json:"ids"`
	ReceiptType string   `json:"receipt_type"`
}

// MessageBody is the nested message object. Some gateway versions emit a
// bare string here instead of an object; both decode.
type MessageBody struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	RepliedID FlexString `json:"replied_id"`
}

// UnmarshalJSON accepts both `"message": "hi"` and `"message": {...}`.
func (m *MessageBody) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		m.Text = text
		return nil
	}
	type alias MessageBody
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*m = MessageBody(decoded)
	return nil
}

// ReactionBody carries a reaction event: the reacted-to message id and the
// text of the message that was reacted to.
type ReactionBody struct {
	ID      FlexString `json:"id"`
	Message string     `json:"message"`
}

// MediaBlock is the structured per-kind media object.
type MediaBlock struct {
	ID        string `json:"id"`
	MediaPath string `json:"media_path"`
	MimeType  string `json:"mime_type"`
	Caption   string `json:"caption"`
	Filename  string `json:"filename"`
}

// Reference returns the media path when present, else the id.
func (b *MediaBlock) Reference() string {
	if b == nil {
		return ""
	}
	if strings.TrimSpace(b.MediaPath) != "" {
		return b.MediaPath
	}
	return b.ID
}

// LocationBlock is the structured location object. Newer gateway versions
// use degreesLatitude/degreesLongitude, older ones latitude/longitude.
type LocationBlock struct {
	DegreesLatitude  *float64 `json:"degreesLatitude"`
	DegreesLongitude *float64 `json:"degreesLongitude"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	URL              string   `json:"url"`
}

// ContactBlock is the structured contact-share object.
type ContactBlock struct {
	DisplayName string `json:"displayName"`
	VCard       string `json:"vcard"`
}

// ContactShare is an entry of a legacy contacts-share list.
type ContactShare struct {
	VCard string `json:"vcard"`
	Name  struct {
		FormattedName string `json:"formatted_name"`
	} `json:"name"`
}

// Decode parses a raw webhook body into a Payload.
func Decode(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Unwrap returns the inner payload when the delivery was wrapped in an
// envelope, falling back to the outer object. The outer event and timestamp
// win when the inner object lacks them.
func (p *Payload) Unwrap() *Payload {
	if p == nil {
		return nil
	}
	if p.Payload == nil {
		return p
	}
	inner := p.Payload
	if strings.TrimSpace(inner.Event) == "" {
		inner.Event = p.Event
	}
	if inner.Timestamp.IsZero() {
		inner.Timestamp = p.Timestamp
	}
	return inner
}

// HasMessageContent reports whether any message body field is present:
// a nested message object or one of the flat text/content fields.
func (p *Payload) HasMessageContent() bool {
	if p.Message != nil && (strings.TrimSpace(p.Message.Text) != "" || strings.TrimSpace(p.Message.ID) != "") {
		return true
	}
	return strings.TrimSpace(p.Text) != "" || strings.TrimSpace(p.Content) != ""
}

// BodyText resolves the message text across all known positions, first
// present wins: message.text, then flat text, then content.
func (p *Payload) BodyText() string {
	if p.Message != nil && p.Message.Text != "" {
		return p.Message.Text
	}
	if p.Text != "" {
		return p.Text
	}
	return p.Content
}

// ExternalMessageID returns the gateway message id when present.
func (p *Payload) ExternalMessageID() string {
	if p.Message == nil {
		return ""
	}
	return strings.TrimSpace(p.Message.ID)
}

// ReplyContextID resolves the replied-to message id. Priority order:
// nested replied_id, then quoted_message_id, then in_reply_to.
func (p *Payload) ReplyContextID() string {
	if p.Message != nil && p.Message.RepliedID.String() != "" {
		return p.Message.RepliedID.String()
	}
	if p.QuotedMessageID.String() != "" {
		return p.QuotedMessageID.String()
	}
	return p.InReplyTo.String()
}
