package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	reservationserrors "slotbook/internal/reservations/errors"
)

type mongoSubscription struct {
	cancel context.CancelFunc
	feed   *feed
}

func (s *mongoSubscription) Events() <-chan Snapshot { return s.feed.ch }

func (s *mongoSubscription) Close() {
	s.cancel()
	s.feed.close()
}

// Subscribe opens a change stream over the range and emits a full snapshot
// first and after every matching change. When the stream fails it emits an
// error snapshot and reopens the stream with exponential backoff until the
// subscription is closed.
func (r *mongoReservationStore) Subscribe(ctx context.Context, rng TimeRange) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	sub := &mongoSubscription{cancel: cancel, feed: newFeed()}
	go r.watch(watchCtx, rng, sub.feed)
	return sub, nil
}

func (r *mongoReservationStore) watch(ctx context.Context, rng TimeRange, f *feed) {
	backoff := r.cfg.StoreRetryMinBackoff
	for {
		delivered, err := r.watchOnce(ctx, rng, f)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			backoff = r.cfg.StoreRetryMinBackoff
		}

		r.cfg.Log.Warn("Reservation change stream interrupted",
			"from", rng.From,
			"to", rng.To,
			"retry_in", backoff,
			"error", err,
		)
		f.publish(Snapshot{Err: fmt.Errorf("%w: %v", reservationserrors.ErrStoreUnavailable, err)})

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(backoff*2, r.cfg.StoreRetryMaxBackoff)
	}
}

// watchOnce reports whether at least one snapshot was delivered before the
// stream ended.
func (r *mongoReservationStore) watchOnce(ctx context.Context, rng TimeRange, f *feed) (bool, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"operationType":           bson.M{"$in": bson.A{"insert", "update", "replace"}},
			"fullDocument.start_time": bson.M{"$gte": rng.From.UTC(), "$lt": rng.To.UTC()},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	// The stream is opened before the initial query so no change between
	// the two is lost.
	stream, err := r.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return false, fmt.Errorf("failed to open change stream: %w", err)
	}
	defer stream.Close(context.Background())

	if err := r.emit(ctx, rng, f); err != nil {
		return false, err
	}

	for stream.Next(ctx) {
		if err := r.emit(ctx, rng, f); err != nil {
			return true, err
		}
	}
	if err := stream.Err(); err != nil {
		return true, err
	}
	return true, ctx.Err()
}

func (r *mongoReservationStore) emit(ctx context.Context, rng TimeRange, f *feed) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	records, err := r.query(queryCtx, rng)
	if err != nil {
		return err
	}
	f.publish(Snapshot{Records: records})
	return nil
}
