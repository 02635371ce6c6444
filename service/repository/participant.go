package repository

import (
	"context"

	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/frame/workerpool"
	"gorm.io/gorm/clause"

	"github.com/sokoapp/service-presence/service/models"
)

type participantRepository struct {
	datastore.BaseRepository[*models.Participant]
}

// GetByProfileID retrieves a participant projection by its remote profile ID.
func (pr *participantRepository) GetByProfileID(
	ctx context.Context,
	profileID string,
) (*models.Participant, error) {
	participant := &models.Participant{}
	err := pr.Pool().DB(ctx, true).
		Where("profile_id = ?", profileID).
		First(participant).Error
	return participant, err
}

// Create persists a new participant projection. An already-existing
// projection for the same profile is left untouched; first write wins and
// the caller gets the surviving row.
func (pr *participantRepository) Create(ctx context.Context, participant *models.Participant) error {
	if participant.GetID() == "" {
		participant.GenID(ctx)
	}

	result := pr.Pool().DB(ctx, false).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}},
			DoNothing: true,
		}).
		Create(participant)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		existing := &models.Participant{}
		err := pr.Pool().DB(ctx, true).
			Where("profile_id = ?", participant.ProfileID).
			First(existing).Error
		if err != nil {
			return err
		}
		*participant = *existing
	}

	return nil
}

// Save creates or updates a participant projection.
func (pr *participantRepository) Save(ctx context.Context, participant *models.Participant) error {
	return pr.Pool().DB(ctx, false).Save(participant).Error
}

// NewParticipantRepository creates a new participant repository instance.
func NewParticipantRepository(
	ctx context.Context,
	dbPool pool.Pool,
	workMan workerpool.Manager,
) ParticipantRepository {
	return &participantRepository{
		BaseRepository: datastore.NewBaseRepository[*models.Participant](
			ctx, dbPool, workMan, func() *models.Participant { return &models.Participant{} },
		),
	}
}
