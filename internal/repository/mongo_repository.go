package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCartRepository stores one document per cart item in "cart_items".
type MongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{
		collection: db.Collection("cart_items"),
	}
}

func (m *MongoCartRepository) ListItems(ctx context.Context, shopperID string) ([]domain.CartItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := m.collection.Find(ctx, bson.M{"shopper_id": shopperID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer cur.Close(ctx)

	items := make([]domain.CartItem, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart items: %w", err)
	}
	return items, nil
}

func (m *MongoCartRepository) GetItem(ctx context.Context, shopperID, itemID string) (*domain.CartItem, error) {
	var item domain.CartItem
	err := m.collection.FindOne(ctx, bson.M{"_id": itemID, "shopper_id": shopperID}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return &item, nil
}

func (m *MongoCartRepository) AddItem(ctx context.Context, shopperID, variantID string, quantity int) (*domain.CartItem, error) {
	item, err := m.upsertItem(ctx, shopperID, variantID, quantity)
	// two concurrent upserts of a new row: the loser retries as an update
	if mongo.IsDuplicateKeyError(err) {
		item, err = m.upsertItem(ctx, shopperID, variantID, quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	return item, nil
}

func (m *MongoCartRepository) upsertItem(ctx context.Context, shopperID, variantID string, quantity int) (*domain.CartItem, error) {
	now := time.Now()
	filter := bson.M{"shopper_id": shopperID, "variant_id": variantID}
	update := bson.M{
		"$inc":         bson.M{"quantity": quantity},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"_id": uuid.NewString(), "created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var item domain.CartItem
	if err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (m *MongoCartRepository) SetQuantity(ctx context.Context, shopperID, itemID string, quantity int) error {
	filter := bson.M{"_id": itemID, "shopper_id": shopperID}
	update := bson.M{"$set": bson.M{"quantity": quantity, "updated_at": time.Now()}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *MongoCartRepository) RemoveItem(ctx context.Context, shopperID, itemID string) error {
	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": itemID, "shopper_id": shopperID})
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

func (m *MongoCartRepository) RemoveOrderedItems(ctx context.Context, shopperID string, ordered []domain.CartItemVersion) (int, error) {
	if len(ordered) == 0 {
		return 0, nil
	}
	rows := make(bson.A, 0, len(ordered))
	for _, o := range ordered {
		rows = append(rows, bson.M{
			"variant_id": o.VariantID,
			"updated_at": bson.M{"$lte": o.UpdatedAt},
		})
	}

	res, err := m.collection.DeleteMany(ctx, bson.M{"shopper_id": shopperID, "$or": rows})
	if err != nil {
		return 0, fmt.Errorf("failed to remove ordered items: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (m *MongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "shopper_id", Value: 1}, {Key: "variant_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
