// Package memory is the process-local Store used when MongoDB is not
// reachable. Records are deep-copied on every read and write, so callers can
// never change stored state without going through the store.
//
// Unlike the MongoDB variant it performs no field-level validation and loses
// everything on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/lifecycle"
	"sosalert/internal/models"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/utils"
	"sosalert/pkg/apperrors"
)

type Store struct {
	mu sync.RWMutex

	users     map[primitive.ObjectID]*models.User
	userOrder []primitive.ObjectID
	emails    map[string]primitive.ObjectID

	alerts     map[primitive.ObjectID]*models.EmergencyAlert
	alertOrder []primitive.ObjectID
	alertLocks map[primitive.ObjectID]*sync.Mutex

	now func() time.Time
}

var _ interfaces.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:      make(map[primitive.ObjectID]*models.User),
		emails:     make(map[string]primitive.ObjectID),
		alerts:     make(map[primitive.ObjectID]*models.EmergencyAlert),
		alertLocks: make(map[primitive.ObjectID]*sync.Mutex),
		now:        time.Now,
	}
}

func (s *Store) Backend() string { return interfaces.BackendMemory }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close(ctx context.Context) error { return nil }

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := s.emails[email]; exists {
		return nil, apperrors.ErrDuplicateEmail
	}

	stored := user.Clone()
	stored.ID = primitive.NewObjectID()
	stored.Email = email
	now := s.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.users[stored.ID] = stored
	s.userOrder = append(s.userOrder, stored.ID)
	s.emails[email] = stored.ID

	return stored.Clone(), nil
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("User")
	}
	return user.Clone(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, apperrors.NotFound("User")
	}
	return s.users[id].Clone(), nil
}

func (s *Store) UpdateUser(ctx context.Context, id primitive.ObjectID, mutate func(*models.User) error) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("User")
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Email = current.Email
	next.Role = current.Role
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now()

	s.users[id] = next
	return next.Clone(), nil
}

func (s *Store) UpdateUserLocation(ctx context.Context, id primitive.ObjectID, lat, lng float64) (*models.User, error) {
	return s.UpdateUser(ctx, id, func(u *models.User) error {
		u.Location = &models.Coordinates{Latitude: lat, Longitude: lng}
		return nil
	})
}

func (s *Store) IncrementStat(ctx context.Context, id primitive.ObjectID, field models.UserStatField) error {
	_, err := s.UpdateUser(ctx, id, func(u *models.User) error {
		switch field {
		case models.StatEmergencyAlerts:
			u.Stats.EmergencyAlerts++
		case models.StatHelpedCount:
			u.Stats.HelpedCount++
		default:
			return apperrors.Newf(apperrors.KindInternal, "unknown stat %q", field)
		}
		return nil
	})
	return err
}

func (s *Store) FindVolunteers(ctx context.Context, activeOnly bool) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	volunteers := make([]*models.User, 0)
	for _, id := range s.userOrder {
		u := s.users[id]
		if u.Role != models.UserRoleVolunteer || (activeOnly && !u.IsActive) {
			continue
		}
		volunteers = append(volunteers, u.Clone())
	}
	return volunteers, nil
}

func (s *Store) FindVolunteersInBox(ctx context.Context, box utils.BoundingBox, limit int) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	volunteers := make([]*models.User, 0)
	for _, id := range s.userOrder {
		if limit > 0 && len(volunteers) >= limit {
			break
		}
		u := s.users[id]
		if u.Role != models.UserRoleVolunteer || !u.IsActive || u.Location == nil {
			continue
		}
		if !box.Contains(u.Location.Latitude, u.Location.Longitude) {
			continue
		}
		volunteers = append(volunteers, u.Clone())
	}
	return volunteers, nil
}

// Alerts

func (s *Store) CreateAlert(ctx context.Context, alert *models.EmergencyAlert) (*models.EmergencyAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	stored := alert.Clone()
	stored.ID = primitive.NewObjectID()
	lifecycle.Initialize(stored, s.now())

	s.mu.Lock()
	s.alerts[stored.ID] = stored
	s.alertOrder = append(s.alertOrder, stored.ID)
	s.alertLocks[stored.ID] = &sync.Mutex{}
	s.mu.Unlock()

	return stored.Clone(), nil
}

func (s *Store) FindAlertByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencyAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, apperrors.NotFound("Alert")
	}
	return alert.Clone(), nil
}

func (s *Store) FindActiveAlerts(ctx context.Context, limit int) ([]*models.EmergencyAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.RLock()
	alerts := s.newestFirst(func(a *models.EmergencyAlert) bool {
		return a.Status == models.AlertStatusActive
	})
	s.mu.RUnlock()

	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (s *Store) FindAlertsByUser(ctx context.Context, userID primitive.ObjectID, params utils.PaginationParams) ([]*models.EmergencyAlert, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, apperrors.FromContext(err)
	}

	s.mu.RLock()
	alerts := s.newestFirst(func(a *models.EmergencyAlert) bool {
		return a.UserID == userID
	})
	s.mu.RUnlock()

	total := int64(len(alerts))
	start := params.Skip()
	if start < 0 || start >= len(alerts) {
		return []*models.EmergencyAlert{}, total, nil
	}
	end := start + params.Limit
	if end > len(alerts) {
		end = len(alerts)
	}
	return alerts[start:end], total, nil
}

// UpdateAlert holds the alert's own mutex for the whole read-modify-write, so
// two mutators for the same id never observe the same prior state.
func (s *Store) UpdateAlert(ctx context.Context, id primitive.ObjectID, mutate interfaces.AlertMutator) (*models.EmergencyAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.RLock()
	lock, ok := s.alertLocks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("Alert")
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext(err)
	}

	s.mu.RLock()
	current, ok := s.alerts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("Alert")
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = id
	next.Version++

	s.mu.Lock()
	defer s.mu.Unlock()
	// The alert may have been purged while the mutator ran.
	if _, ok := s.alerts[id]; !ok {
		return nil, apperrors.NotFound("Alert")
	}
	s.alerts[id] = next

	return next.Clone(), nil
}

// DeleteClosedAlertsBefore drops resolved and cancelled alerts created
// before cutoff. Open alerts are kept regardless of age.
func (s *Store) DeleteClosedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.FromContext(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	kept := s.alertOrder[:0]
	for _, id := range s.alertOrder {
		a := s.alerts[id]
		if a.IsTerminal() && a.CreatedAt.Before(cutoff) {
			delete(s.alerts, id)
			delete(s.alertLocks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.alertOrder = kept
	return removed, nil
}

// newestFirst returns clones of matching alerts ordered by CreatedAt
// descending; ties keep the later insertion first. Callers hold s.mu.
func (s *Store) newestFirst(match func(*models.EmergencyAlert) bool) []*models.EmergencyAlert {
	out := make([]*models.EmergencyAlert, 0)
	for i := len(s.alertOrder) - 1; i >= 0; i-- {
		a := s.alerts[s.alertOrder[i]]
		if match(a) {
			out = append(out, a.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
