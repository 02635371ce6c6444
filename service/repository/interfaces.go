package repository

import (
	"context"

	"github.com/sokoapp/service-presence/service/models"
)

// MessageRepository defines the interface for message data access operations.
type MessageRepository interface {
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Create(ctx context.Context, message *models.Message) error
	Save(ctx context.Context, message *models.Message) error
	// GetByConversationID retrieves messages for a conversation ordered by
	// creation time ascending.
	GetByConversationID(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
}

// ConversationRepository defines the interface for conversation data access operations.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	// GetOneToOne retrieves the single direct conversation between two
	// participants, independent of argument order.
	GetOneToOne(ctx context.Context, profileA, profileB string) (*models.Conversation, error)
	Create(ctx context.Context, conversation *models.Conversation) error
	Save(ctx context.Context, conversation *models.Conversation) error
}

// ParticipantRepository defines the interface for participant projection
// data access operations.
type ParticipantRepository interface {
	GetByProfileID(ctx context.Context, profileID string) (*models.Participant, error)
	Create(ctx context.Context, participant *models.Participant) error
	Save(ctx context.Context, participant *models.Participant) error
}
