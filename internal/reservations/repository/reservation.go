package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/pkg/config"
	mongotx "slotbook/pkg/db/mongo"
	"slotbook/pkg/model"
)

const (
	CollectionName      = "Reservations"
	ClaimCollectionName = "Slot_claims"
)

type mongoReservationStore struct {
	cfg        *config.Config
	client     *mongo.Client
	collection *mongo.Collection
	claims     *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationStore(cfg *config.Config) ReservationStore {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationStore{
		cfg:        cfg,
		client:     cfg.Client.Mongo,
		collection: db.Collection(CollectionName),
		claims:     db.Collection(ClaimCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout leaves a SessionContext untouched; wrapping it would detach
// the operation from the running transaction.
func (r *mongoReservationStore) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationStore) Create(ctx context.Context, res *model.Reservation) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	stored := clone(res)
	stored.ID = primitive.NewObjectID().Hex()
	stored.StartTime = stored.StartTime.UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	claim := &model.SlotClaim{
		ID:            model.SlotClaimID(stored.StartTime),
		ReservationID: stored.ID,
		StartTime:     stored.StartTime,
		CreatedAt:     now,
	}

	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if stored.Status.Occupies() {
			if _, err := r.claims.InsertOne(sessCtx, claim); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return reservationserrors.ErrSlotTaken
				}
				return fmt.Errorf("failed to claim slot: %w", err)
			}
		}
		if _, err := r.collection.InsertOne(sessCtx, stored); err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *mongoReservationStore) UpdateStatus(ctx context.Context, id string, from, to model.ReservationStatus) (*model.Reservation, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var updated model.Reservation
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		filter := bson.M{"_id": id, "status": from}
		update := bson.M{"$set": bson.M{
			"status":     to,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		}}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		err := r.collection.FindOneAndUpdate(sessCtx, filter, update, opts).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, countErr := r.collection.CountDocuments(sessCtx, bson.M{"_id": id})
			if countErr != nil {
				return fmt.Errorf("failed to look up reservation: %w", countErr)
			}
			if count == 0 {
				return reservationserrors.ErrNotFound
			}
			return reservationserrors.ErrStatusChanged
		}
		if err != nil {
			return fmt.Errorf("failed to update reservation status: %w", err)
		}

		if !to.Occupies() {
			claimFilter := bson.M{"_id": model.SlotClaimID(updated.StartTime), "reservation_id": id}
			if _, err := r.claims.DeleteOne(sessCtx, claimFilter); err != nil {
				return fmt.Errorf("failed to release slot claim: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *mongoReservationStore) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var res model.Reservation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &res, nil
}

func (r *mongoReservationStore) Query(ctx context.Context, rng TimeRange) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.query(ctx, rng)
}

func (r *mongoReservationStore) query(ctx context.Context, rng TimeRange) ([]*model.Reservation, error) {
	filter := bson.M{"start_time": bson.M{"$gte": rng.From.UTC(), "$lt": rng.To.UTC()}}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*model.Reservation{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return records, nil
}

func (r *mongoReservationStore) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*model.Reservation{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return records, nil
}

func (r *mongoReservationStore) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationStore) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.client.Ping(ctx, nil)
}
