package repository

import (
	"context"

	"github.com/pitabwire/frame/data"
	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/frame/workerpool"
	"gorm.io/gorm/clause"

	"github.com/sokoapp/service-presence/service/models"
)

type conversationRepository struct {
	datastore.BaseRepository[*models.Conversation]
}

// GetByID retrieves a conversation by its ID.
func (cr *conversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	conversation := &models.Conversation{}
	err := cr.Pool().DB(ctx, true).First(conversation, "id = ?", id).Error
	return conversation, err
}

// GetOneToOne retrieves the direct conversation between two participants.
// The pair key is order-insensitive, so argument order does not matter.
func (cr *conversationRepository) GetOneToOne(
	ctx context.Context,
	profileA, profileB string,
) (*models.Conversation, error) {
	conversation := &models.Conversation{}
	err := cr.Pool().DB(ctx, true).
		Where("pair_key = ?", models.PairKeyFor(profileA, profileB)).
		First(conversation).Error
	return conversation, err
}

// Create persists a new conversation. The unique index on pair_key makes
// concurrent first-contact creation collapse to one row: on conflict the
// insert is skipped and the surviving row is read back.
func (cr *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	if conversation.PairKey == "" {
		conversation.PairKey = models.PairKeyFor(conversation.ParticipantAID, conversation.ParticipantBID)
	}
	if conversation.GetID() == "" {
		conversation.GenID(ctx)
	}

	result := cr.Pool().DB(ctx, false).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).
		Create(conversation)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Lost the race; adopt the row the concurrent create won with.
		existing := &models.Conversation{}
		err := cr.Pool().DB(ctx, true).
			Where("pair_key = ?", conversation.PairKey).
			First(existing).Error
		if err != nil {
			return err
		}
		*conversation = *existing
	}

	return nil
}

// Save creates or updates a conversation.
func (cr *conversationRepository) Save(ctx context.Context, conversation *models.Conversation) error {
	return cr.Pool().DB(ctx, false).Save(conversation).Error
}

// ErrorIsNoRows reports whether the error marks an empty lookup result.
func ErrorIsNoRows(err error) bool {
	return data.ErrorIsNoRows(err)
}

// NewConversationRepository creates a new conversation repository instance.
func NewConversationRepository(
	ctx context.Context,
	dbPool pool.Pool,
	workMan workerpool.Manager,
) ConversationRepository {
	return &conversationRepository{
		BaseRepository: datastore.NewBaseRepository[*models.Conversation](
			ctx, dbPool, workMan, func() *models.Conversation { return &models.Conversation{} },
		),
	}
}
