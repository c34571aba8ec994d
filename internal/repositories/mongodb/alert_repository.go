package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sosalert/internal/lifecycle"
	"sosalert/internal/models"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/utils"
	"sosalert/pkg/apperrors"
)

// ErrUpdateConflict is returned when an alert keeps changing underneath
// UpdateAlert for more than the configured number of retries.
var ErrUpdateConflict = apperrors.New(apperrors.KindInternal, "alert is being updated concurrently, please retry")

type alertRepository struct {
	collection *mongo.Collection
	retries    int
	// onConflict runs each time a versioned replace matches nothing.
	onConflict func()
}

func NewAlertRepository(db *mongo.Database, retries int, onConflict func()) interfaces.AlertRepository {
	return newAlertRepository(db, retries, onConflict)
}

func newAlertRepository(db *mongo.Database, retries int, onConflict func()) *alertRepository {
	if retries < 1 {
		retries = 1
	}
	if onConflict == nil {
		onConflict = func() {}
	}
	return &alertRepository{
		collection: db.Collection(alertsCollection),
		retries:    retries,
		onConflict: onConflict,
	}
}

func (r *alertRepository) CreateAlert(ctx context.Context, alert *models.EmergencyAlert) (*models.EmergencyAlert, error) {
	stored := alert.Clone()
	stored.ID = primitive.NewObjectID()
	lifecycle.Initialize(stored, time.Now())

	if _, err := r.collection.InsertOne(ctx, stored); err != nil {
		return nil, storeError(err, "create alert")
	}
	return stored, nil
}

func (r *alertRepository) FindAlertByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencyAlert, error) {
	var alert models.EmergencyAlert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("Alert")
		}
		return nil, storeError(err, "get alert")
	}
	return &alert, nil
}

func (r *alertRepository) FindActiveAlerts(ctx context.Context, limit int) ([]*models.EmergencyAlert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"status": models.AlertStatusActive}, opts)
}

func (r *alertRepository) FindAlertsByUser(ctx context.Context, userID primitive.ObjectID, params utils.PaginationParams) ([]*models.EmergencyAlert, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, storeError(err, "count alerts")
	}
	if params.Skip() < 0 {
		return []*models.EmergencyAlert{}, total, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(params.Skip())).
		SetLimit(int64(params.Limit))

	alerts, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// UpdateAlert is an optimistic read-modify-write. The replace only succeeds
// while the stored version equals the one the mutator saw; otherwise the
// alert is re-read and the mutator re-run against the newer state.
func (r *alertRepository) UpdateAlert(ctx context.Context, id primitive.ObjectID, mutate interfaces.AlertMutator) (*models.EmergencyAlert, error) {
	for attempt := 0; attempt < r.retries; attempt++ {
		current, err := r.FindAlertByID(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			return nil, err
		}
		next.ID = id
		next.Version = current.Version + 1

		res, err := r.collection.ReplaceOne(ctx, versionFilter(id, current.Version), next)
		if err != nil {
			return nil, storeError(err, "update alert")
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
		r.onConflict()
	}
	return nil, ErrUpdateConflict
}

func (r *alertRepository) DeleteClosedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, closedAlertsBeforeFilter(cutoff))
	if err != nil {
		return 0, storeError(err, "delete closed alerts")
	}
	return res.DeletedCount, nil
}

func (r *alertRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.EmergencyAlert, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err, "find alerts")
	}
	defer cursor.Close(ctx)

	alerts := make([]*models.EmergencyAlert, 0)
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, storeError(err, "decode alerts")
	}
	return alerts, nil
}
