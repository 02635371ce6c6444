package business

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pitabwire/frame/data"
	"github.com/pitabwire/util"

	"github.com/sokoapp/service-presence/internal"
	"github.com/sokoapp/service-presence/service"
	"github.com/sokoapp/service-presence/service/models"
	"github.com/sokoapp/service-presence/service/profile"
	"github.com/sokoapp/service-presence/service/protocol"
	"github.com/sokoapp/service-presence/service/repository"
)

// ProfileResolver resolves a remote identity by ID. Satisfied by
// profile.Client.
type ProfileResolver interface {
	GetByID(ctx context.Context, profileID string) (*profile.Profile, error)
}

// MessageHandler owns the "message." namespace: sending a message between
// two participants and acknowledging delivery of one, including the
// SEND -> RECEIVED (-> SEEN) status machine and the asymmetric
// notifications each transition triggers.
type MessageHandler struct {
	registry *Registry
	profiles ProfileResolver

	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	participantRepo  repository.ParticipantRepository
}

// NewMessageHandler creates the message action handler.
func NewMessageHandler(
	registry *Registry,
	profiles ProfileResolver,
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	participantRepo repository.ParticipantRepository,
) *MessageHandler {
	return &MessageHandler{
		registry:         registry,
		profiles:         profiles,
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		participantRepo:  participantRepo,
	}
}

// Supports claims every type under the message namespace.
func (mh *MessageHandler) Supports(envelopeType string) bool {
	return strings.HasPrefix(envelopeType, internal.NamespaceMessage)
}

// Handle routes to the recognized message actions.
func (mh *MessageHandler) Handle(ctx context.Context, conn *Connection, env *protocol.Envelope) error {
	switch env.Type {
	case internal.TypeMessageSend:
		return mh.handleSend(ctx, conn, env)
	case internal.TypeMessageReceived:
		return mh.handleReadAck(ctx, conn, env)
	default:
		return ErrUnknownAction
	}
}

// handleSend persists a new message and fans out the result: a
// "message.receive" push to the receiver when live, and always a
// "message.send.ack" back to the sender. The sender identity comes from
// the connection's registered identity; a sender asserted in the payload
// is ignored.
func (mh *MessageHandler) handleSend(ctx context.Context, conn *Connection, env *protocol.Envelope) error {
	var payload protocol.SendMessagePayload
	if err := env.DecodeData(&payload); err != nil {
		return err
	}
	if payload.ReceiverID == "" {
		return service.ErrReceiverRequired
	}
	if payload.Content == "" {
		return service.ErrContentRequired
	}

	senderID := conn.UserID()

	sender, err := mh.ensureParticipant(ctx, senderID)
	if err != nil {
		return err
	}
	if _, err = mh.ensureParticipant(ctx, payload.ReceiverID); err != nil {
		return err
	}

	receiverConn, receiverLive := mh.registry.Lookup(payload.ReceiverID)

	status := models.StatusSend
	if receiverLive {
		status = models.StatusReceived
	}

	conversation, err := mh.findOrCreateConversation(ctx, senderID, payload.ReceiverID)
	if err != nil {
		return err
	}

	message := &models.Message{
		ConversationID: conversation.GetID(),
		SenderID:       senderID,
		Content:        payload.Content,
		Status:         status,
	}
	if err = mh.messageRepo.Create(ctx, message); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	conversation.TouchLastMessage(message)
	if err = mh.conversationRepo.Save(ctx, conversation); err != nil {
		return fmt.Errorf("failed to update conversation snapshot: %w", err)
	}

	wirePayload := message.ToPayload(sender.ToSenderInfo())

	if receiverLive {
		if !notify(ctx, receiverConn, internal.TypeMessageReceive, wirePayload) {
			// Receiver vanished between lookup and push. The stored
			// RECEIVED status stands; delivery failure is equivalent to
			// the receiver never having been live.
			util.Log(ctx).WithField("receiver_id", payload.ReceiverID).
				Debug("live delivery failed, receiver treated as offline")
		}
	}

	notify(ctx, conn, internal.TypeMessageSendAck, wirePayload)
	return nil
}

// handleReadAck marks a stored message as received. Only the message's
// recorded sender may acknowledge it; any other caller gets ErrForbidden.
// Acknowledging an already-RECEIVED message is an idempotent no-op.
func (mh *MessageHandler) handleReadAck(ctx context.Context, conn *Connection, env *protocol.Envelope) error {
	var payload protocol.AckMessagePayload
	if err := env.DecodeData(&payload); err != nil {
		return err
	}
	if payload.MessageID == "" {
		return service.ErrMessageNotFound
	}

	message, err := mh.messageRepo.GetByID(ctx, payload.MessageID)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return service.ErrMessageNotFound
		}
		return fmt.Errorf("failed to load message: %w", err)
	}

	if message.SenderID != conn.UserID() {
		return service.ErrForbidden
	}

	if message.Status == models.StatusReceived {
		return nil
	}

	message.Status = models.StatusReceived
	if err = mh.messageRepo.Save(ctx, message); err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	mh.refreshConversationSnapshot(ctx, message)

	reader, err := mh.ensureParticipant(ctx, conn.UserID())
	if err != nil {
		// The status change is committed; the notification is best
		// effort on top of it.
		util.Log(ctx).WithError(err).Debug("could not resolve reader identity for read receipt")
		return nil
	}

	if senderConn, live := mh.registry.Lookup(message.SenderID); live {
		notify(ctx, senderConn, internal.TypeMessageReceived, &protocol.ReadReceiptPayload{
			MessageID:      message.GetID(),
			ConversationID: message.ConversationID,
			Reader:         reader.ToSenderInfo(),
			Status:         message.Status,
			ReadAt:         time.Now().Unix(),
		})
	}

	return nil
}

// refreshConversationSnapshot re-copies the message into the
// conversation's denormalized last-message fields when it is the current
// last message. Failures here are logged, not propagated; the message
// status update already committed.
func (mh *MessageHandler) refreshConversationSnapshot(ctx context.Context, message *models.Message) {
	conversation, err := mh.conversationRepo.GetByID(ctx, message.ConversationID)
	if err != nil {
		util.Log(ctx).WithError(err).WithField("conversation_id", message.ConversationID).
			Error("failed to load conversation for snapshot refresh")
		return
	}

	if conversation.LastMessageID != message.GetID() {
		return
	}

	conversation.TouchLastMessage(message)
	if err = mh.conversationRepo.Save(ctx, conversation); err != nil {
		util.Log(ctx).WithError(err).WithField("conversation_id", conversation.GetID()).
			Error("failed to refresh conversation snapshot")
	}
}

// ensureParticipant returns the local projection for a profile, creating
// it on first reference by copying the remote identity. An existing
// projection is reused without refreshing it.
func (mh *MessageHandler) ensureParticipant(ctx context.Context, profileID string) (*models.Participant, error) {
	participant, err := mh.participantRepo.GetByProfileID(ctx, profileID)
	if err == nil {
		return participant, nil
	}
	if !data.ErrorIsNoRows(err) {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}

	remote, err := mh.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, service.ErrUserNotFound
		}
		return nil, fmt.Errorf("identity lookup failed for %s: %w", profileID, err)
	}

	participant = &models.Participant{
		ProfileID: remote.ID,
		Name:      remote.Name,
		Email:     remote.Email,
		AvatarURL: remote.AvatarURL,
	}
	// Create tolerates a concurrent first reference; the surviving row
	// comes back either way.
	if err = mh.participantRepo.Create(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to create participant projection: %w", err)
	}

	return participant, nil
}

// findOrCreateConversation returns the one-to-one conversation between
// the two participants, creating it lazily on first contact.
func (mh *MessageHandler) findOrCreateConversation(
	ctx context.Context,
	senderID, receiverID string,
) (*models.Conversation, error) {
	conversation, err := mh.conversationRepo.GetOneToOne(ctx, senderID, receiverID)
	if err == nil {
		return conversation, nil
	}
	if !data.ErrorIsNoRows(err) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	conversation = &models.Conversation{
		PairKey:        models.PairKeyFor(senderID, receiverID),
		ParticipantAID: senderID,
		ParticipantBID: receiverID,
	}
	if err = mh.conversationRepo.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conversation, nil
}
