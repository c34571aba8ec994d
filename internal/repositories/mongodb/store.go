package mongodb

import (
	"context"

	"sosalert/internal/repositories/interfaces"
	"sosalert/pkg/database"
	"sosalert/pkg/logger"
)

// Store is the durable Store backed by MongoDB.
type Store struct {
	*userRepository
	*alertRepository
	db *database.MongoDB
}

var _ interfaces.Store = (*Store)(nil)

// NewStore wraps an open connection and applies pending migrations.
// onConflict may be nil.
func NewStore(ctx context.Context, db *database.MongoDB, conflictRetries int, onConflict func(), log *logger.Logger) (*Store, error) {
	if err := database.NewMigrator(db.Database, Migrations(), log).Up(ctx); err != nil {
		return nil, err
	}
	return &Store{
		userRepository:  newUserRepository(db.Database),
		alertRepository: newAlertRepository(db.Database, conflictRetries, onConflict),
		db:              db,
	}, nil
}

func (s *Store) Backend() string { return interfaces.BackendMongoDB }

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Close(ctx context.Context) error { return s.db.Close(ctx) }
