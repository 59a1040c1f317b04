package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, cartID string) (*domain.StoredCart, error) {
	return m.findOne(ctx, bson.M{"_id": cartID})
}

func (m *mongoRepository) GetCartBySession(ctx context.Context, sessionID string) (*domain.StoredCart, error) {
	return m.findOne(ctx, bson.M{"session_id": sessionID})
}

func (m *mongoRepository) findOne(ctx context.Context, filter bson.M) (*domain.StoredCart, error) {
	var cart domain.StoredCart

	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *mongoRepository) CreateCart(ctx context.Context, cart *domain.StoredCart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	if _, err := m.collection.InsertOne(ctx, cart); err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

func (m *mongoRepository) ApplyDelta(ctx context.Context, cartID string, line domain.StoredLine, delta int) (*domain.StoredCart, error) {
	if delta == 0 {
		return m.GetCart(ctx, cartID)
	}

	now := time.Now()

	for attempt := 0; attempt < maxDeltaAttempts; attempt++ {
		// One pipeline update adjusts the matched line and drops any line
		// at quantity zero or below in the same atomic write. Concurrent
		// deltas against an existing line compose additively, and no
		// intermediate state with an empty line is ever stored.
		filter := bson.M{
			"_id":              cartID,
			"items.variant_id": line.VariantID,
		}
		result, err := m.collection.UpdateOne(ctx, filter, adjustQuantityPipeline(line.VariantID, delta, now))
		if err != nil {
			return nil, fmt.Errorf("failed to apply delta: %w", err)
		}
		if result.MatchedCount > 0 {
			return m.GetCart(ctx, cartID)
		}

		if delta < 0 {
			// Removing a line that does not exist is a no-op.
			return m.GetCart(ctx, cartID)
		}

		newLine := line
		newLine.Quantity = delta
		newLine.AddedAt = now
		push := bson.M{
			"$push": bson.M{"items": newLine},
			"$set":  bson.M{"updated_at": now},
		}
		// The guard keeps the first add atomic: of two concurrent adds for
		// the same variant exactly one push lands, the other retries as an
		// adjust.
		pushFilter := bson.M{
			"_id":              cartID,
			"items.variant_id": bson.M{"$ne": line.VariantID},
		}
		pushResult, err := m.collection.UpdateOne(ctx, pushFilter, push)
		if err != nil {
			return nil, fmt.Errorf("failed to add new line: %w", err)
		}
		if pushResult.MatchedCount > 0 {
			return m.GetCart(ctx, cartID)
		}

		// Neither update matched: the cart is gone, or a concurrent add
		// won the race and the line exists now.
		if _, err := m.GetCart(ctx, cartID); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to apply delta for variant %s: retries exhausted", line.VariantID)
}

const maxDeltaAttempts = 3

// adjustQuantityPipeline increments the quantity of the matching line and
// filters out lines at quantity zero or below, as a single update.
func adjustQuantityPipeline(variantID string, delta int, now time.Time) bson.A {
	adjusted := bson.M{"$map": bson.M{
		"input": "$items",
		"as":    "item",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$$item.variant_id", variantID}},
			bson.M{"$mergeObjects": bson.A{
				"$$item",
				bson.M{"quantity": bson.M{"$add": bson.A{"$$item.quantity", delta}}},
			}},
			"$$item",
		}},
	}}

	return bson.A{
		bson.M{"$set": bson.M{
			"updated_at": now,
			"items": bson.M{"$filter": bson.M{
				"input": adjusted,
				"as":    "item",
				"cond":  bson.M{"$gt": bson.A{"$$item.quantity", 0}},
			}},
		}},
	}
}

func (m *mongoRepository) DeleteCart(ctx context.Context, cartID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": cartID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
