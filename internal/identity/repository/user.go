package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotbook/pkg/config"
	"slotbook/pkg/model"
)

const UserCollectionName = "Users"

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	// FindOrCreate returns the user registered for phone, creating it with
	// role on first sign-in. An existing user's role is never changed.
	FindOrCreate(ctx context.Context, phone string, role model.Role) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	return &mongoUserRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(UserCollectionName),
	}
}

func (r *mongoUserRepository) FindOrCreate(ctx context.Context, phone string, role model.Role) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"phone": phone}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        primitive.NewObjectID().Hex(),
		"phone":      phone,
		"role":       role,
		"created_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user model.User
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent first sign-in won the upsert.
		err = r.collection.FindOne(ctx, filter).Decode(&user)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find or create user: %w", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

type memoryUserRepository struct {
	mu      sync.Mutex
	byPhone map[string]*model.User
}

func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{byPhone: make(map[string]*model.User)}
}

func (r *memoryUserRepository) FindOrCreate(_ context.Context, phone string, role model.Role) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.byPhone[phone]; ok {
		c := *u
		return &c, nil
	}
	u := &model.User{
		ID:        primitive.NewObjectID().Hex(),
		Phone:     phone,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	r.byPhone[phone] = u
	c := *u
	return &c, nil
}

func (r *memoryUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byPhone {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}
