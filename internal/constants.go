package internal

const (
	// Envelope types understood by the service. The prefix before the
	// first dot identifies the owning action handler.
	TypeRegister        = "register"
	TypeMessageSend     = "message.send"
	TypeMessageSendAck  = "message.send.ack"
	TypeMessageReceive  = "message.receive"
	TypeMessageReceived = "message.received"
	TypePostApply       = "post.apply"
	TypePostComment     = "post.comment"

	NamespaceMessage = "message."
	NamespacePost    = "post."
)
