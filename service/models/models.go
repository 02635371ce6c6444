package models

import (
	"strings"
	"time"

	"github.com/pitabwire/frame/data"

	"github.com/sokoapp/service-presence/service/protocol"
)

// Delivery status values for a message. A message starts at SEND, moves
// to RECEIVED once it reaches a live counterpart connection or is
// explicitly acknowledged, and SEEN is reserved for an explicit read
// transition whose trigger is not wired up yet.
const (
	StatusSend     = "SEND"
	StatusReceived = "RECEIVED"
	StatusSeen     = "SEEN"
)

// Message represents one chat message exchanged inside a conversation.
type Message struct {
	data.BaseModel
	ConversationID string `gorm:"type:varchar(50);index:idx_message_conversation_id"`
	SenderID       string `gorm:"type:varchar(50)"`
	Content        string
	Status         string `gorm:"type:varchar(10)"`
}

// ToPayload converts the message to its outbound wire representation.
func (m *Message) ToPayload(sender protocol.SenderInfo) *protocol.MessagePayload {
	if m == nil {
		return nil
	}
	return &protocol.MessagePayload{
		MessageID:      m.GetID(),
		ConversationID: m.ConversationID,
		Sender:         sender,
		Content:        m.Content,
		Status:         m.Status,
		SentAt:         m.CreatedAt.Unix(),
	}
}

// Conversation groups exactly the two participants of a direct exchange.
// PairKey is the order-insensitive identity of the pair and carries a
// unique index, so concurrent first-contact sends between the same two
// users collapse to a single row.
type Conversation struct {
	data.BaseModel
	PairKey        string `gorm:"type:varchar(101);uniqueIndex:idx_conversation_pair_key"`
	ParticipantAID string `gorm:"type:varchar(50)"`
	ParticipantBID string `gorm:"type:varchar(50)"`

	LastMessageID       string `gorm:"type:varchar(50)"`
	LastMessageContent  string
	LastMessageSenderID string `gorm:"type:varchar(50)"`
	LastMessageStatus   string `gorm:"type:varchar(10)"`
	LastMessageAt       time.Time
}

// PairKeyFor builds the normalized pair key for two participant IDs,
// independent of argument order.
func PairKeyFor(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}

// Includes reports whether the given profile is one of the two
// conversation participants.
func (c *Conversation) Includes(profileID string) bool {
	return c.ParticipantAID == profileID || c.ParticipantBID == profileID
}

// CounterpartOf returns the other participant of the conversation, or ""
// when the given profile is not a participant.
func (c *Conversation) CounterpartOf(profileID string) string {
	switch profileID {
	case c.ParticipantAID:
		return c.ParticipantBID
	case c.ParticipantBID:
		return c.ParticipantAID
	default:
		return ""
	}
}

// TouchLastMessage refreshes the denormalized last-message snapshot.
func (c *Conversation) TouchLastMessage(msg *Message) {
	c.LastMessageID = msg.GetID()
	c.LastMessageContent = msg.Content
	c.LastMessageSenderID = msg.SenderID
	c.LastMessageStatus = msg.Status
	c.LastMessageAt = msg.CreatedAt
}

// Participant is a local projection of a remote user identity, created
// lazily on first reference and never refreshed afterwards.
type Participant struct {
	data.BaseModel
	ProfileID string `gorm:"type:varchar(50);uniqueIndex:idx_participant_profile_id"`
	Name      string
	Email     string `gorm:"type:varchar(250)"`
	AvatarURL string `gorm:"type:varchar(500)"`
}

// ToSenderInfo converts the participant to the identity shape embedded in
// outbound envelopes.
func (p *Participant) ToSenderInfo() protocol.SenderInfo {
	if p == nil {
		return protocol.SenderInfo{}
	}
	return protocol.SenderInfo{
		ProfileID: p.ProfileID,
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
	}
}
