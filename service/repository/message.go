package repository

import (
	"context"

	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/frame/workerpool"

	"github.com/sokoapp/service-presence/service/models"
)

type messageRepository struct {
	datastore.BaseRepository[*models.Message]
}

// GetByID retrieves a message by its ID.
func (mr *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	message := &models.Message{}
	err := mr.Pool().DB(ctx, true).First(message, "id = ?", id).Error
	return message, err
}

// Create persists a new message.
func (mr *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.GetID() == "" {
		message.GenID(ctx)
	}
	return mr.Pool().DB(ctx, false).Create(message).Error
}

// Save creates or updates a message.
func (mr *messageRepository) Save(ctx context.Context, message *models.Message) error {
	return mr.Pool().DB(ctx, false).Save(message).Error
}

// GetByConversationID retrieves messages for a conversation ordered by
// creation time ascending.
func (mr *messageRepository) GetByConversationID(
	ctx context.Context,
	conversationID string,
	limit int,
) ([]*models.Message, error) {
	var messages []*models.Message
	query := mr.Pool().DB(ctx, true).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&messages).Error
	return messages, err
}

// NewMessageRepository creates a new message repository instance.
func NewMessageRepository(ctx context.Context, dbPool pool.Pool, workMan workerpool.Manager) MessageRepository {
	return &messageRepository{
		BaseRepository: datastore.NewBaseRepository[*models.Message](
			ctx, dbPool, workMan, func() *models.Message { return &models.Message{} },
		),
	}
}
