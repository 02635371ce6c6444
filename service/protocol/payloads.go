package protocol

// RegisterPayload is carried by the one-time "register" envelope that
// binds a connection to a user.
type RegisterPayload struct {
	UserID string `json:"userId"`
}

// SendMessagePayload is the inbound "message.send" payload. The sender
// identity is never taken from the payload; it comes from the
// connection's registered identity.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// AckMessagePayload is the inbound "message.received" payload marking a
// stored message as read.
type AckMessagePayload struct {
	MessageID string `json:"messageId"`
}

// PostApplyPayload is the inbound "post.apply" payload. The post actions
// are registered but intentionally unimplemented.
type PostApplyPayload struct {
	PostID string `json:"postId"`
	Number int    `json:"number"`
}

// SenderInfo is the resolved identity of a message sender included in
// outbound message envelopes.
type SenderInfo struct {
	ProfileID string `json:"profileId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// MessagePayload is the outbound payload shared by "message.send.ack"
// (to the original sender) and "message.receive" (to a live receiver).
type MessagePayload struct {
	MessageID      string     `json:"messageId"`
	ConversationID string     `json:"conversationId"`
	Sender         SenderInfo `json:"sender"`
	Content        string     `json:"content"`
	Status         string     `json:"status"`
	SentAt         int64      `json:"sentAt"`
}

// ReadReceiptPayload is the outbound "message.received" payload pushed to
// the original sender when their message is marked read.
type ReadReceiptPayload struct {
	MessageID      string     `json:"messageId"`
	ConversationID string     `json:"conversationId"`
	Reader         SenderInfo `json:"reader"`
	Status         string     `json:"status"`
	ReadAt         int64      `json:"readAt"`
}
