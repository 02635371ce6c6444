package repository

import (
	"context"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/datastore"

	"github.com/sokoapp/service-presence/service/models"
)

// Migrate applies the schema for all presence models.
func Migrate(ctx context.Context, svc *frame.Service, migrationPath string) error {
	dbPool := svc.DatastoreManager().GetPool(ctx, datastore.DefaultPoolName)
	return dbPool.Migrate(ctx, migrationPath,
		&models.Participant{}, &models.Conversation{}, &models.Message{})
}
