package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sosalert/internal/models"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/utils"
	"sosalert/pkg/apperrors"
)

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) interfaces.UserRepository {
	return newUserRepository(db)
}

func newUserRepository(db *mongo.Database) *userRepository {
	return &userRepository{
		collection: db.Collection(usersCollection),
	}
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	stored := user.Clone()
	stored.ID = primitive.NewObjectID()
	stored.Email = strings.ToLower(strings.TrimSpace(stored.Email))
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, stored)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, storeError(err, "create user")
	}

	return stored, nil
}

func (r *userRepository) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User")
		}
		return nil, storeError(err, "get user")
	}
	return &user, nil
}

func (r *userRepository) UpdateUser(ctx context.Context, id primitive.ObjectID, mutate func(*models.User) error) (*models.User, error) {
	current, err := r.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Email = current.Email
	next.Role = current.Role
	next.Stats = current.Stats
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now()

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": userMutableFields(next)})
	if err != nil {
		return nil, storeError(err, "update user")
	}
	if res.MatchedCount == 0 {
		return nil, apperrors.NotFound("User")
	}

	return next, nil
}

func (r *userRepository) UpdateUserLocation(ctx context.Context, id primitive.ObjectID, lat, lng float64) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"location":   models.Coordinates{Latitude: lat, Longitude: lng},
			"updated_at": time.Now(),
		}},
		opts,
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User")
		}
		return nil, storeError(err, "update user location")
	}

	return &user, nil
}

func (r *userRepository) IncrementStat(ctx context.Context, id primitive.ObjectID, field models.UserStatField) error {
	key, ok := statField(field)
	if !ok {
		return apperrors.Newf(apperrors.KindInternal, "unknown stat %q", field)
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{key: 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return storeError(err, "increment user stat")
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("User")
	}
	return nil
}

func (r *userRepository) FindVolunteers(ctx context.Context, activeOnly bool) ([]*models.User, error) {
	return r.find(ctx, volunteersFilter(activeOnly), options.Find())
}

func (r *userRepository) FindVolunteersInBox(ctx context.Context, box utils.BoundingBox, limit int) ([]*models.User, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, volunteersInBoxFilter(box), opts)
}

func (r *userRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.User, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err, "find users")
	}
	defer cursor.Close(ctx)

	users := make([]*models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, storeError(err, "decode users")
	}
	return users, nil
}
