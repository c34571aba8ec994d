package interfaces

import "context"

const (
	BackendMongoDB = "mongodb"
	BackendMemory  = "memory"
)

// Store is the full persistence surface. One implementation is chosen at
// startup and injected everywhere.
type Store interface {
	UserRepository
	AlertRepository

	Backend() string
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
