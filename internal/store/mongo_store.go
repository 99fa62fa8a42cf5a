package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const checkoutsCollection = "checkouts"

var orderedStatuses = []domain.CheckoutStatus{
	domain.CheckoutStatusIncomplete,
	domain.CheckoutStatusReadyForPayment,
	domain.CheckoutStatusCompleted,
}

type lineItemDocument struct {
	ProductID string `bson:"product_id"`
	Quantity  int    `bson:"quantity"`
	UnitPrice string `bson:"unit_price"`
	LineTotal string `bson:"line_total"`
}

type totalsDocument struct {
	Subtotal string `bson:"subtotal"`
	Tax      string `bson:"tax"`
	Shipping string `bson:"shipping"`
	Total    string `bson:"total"`
	Currency string `bson:"currency"`
}

type checkoutDocument struct {
	ID          string             `bson:"_id"`
	SessionID   string             `bson:"session_id"`
	LineItems   []lineItemDocument `bson:"line_items"`
	Currency    string             `bson:"currency"`
	Status      string             `bson:"status"`
	Customer    domain.Customer    `bson:"customer"`
	Totals      totalsDocument     `bson:"totals"`
	Version     int64              `bson:"version"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
	PaymentID   string             `bson:"payment_id,omitempty"`
	OrderID     string             `bson:"order_id,omitempty"`
	CompletedAt *time.Time         `bson:"completed_at,omitempty"`
}

// MongoStore keeps one document per checkout. Concurrent writers are
// serialised by filtering every update on the version they read.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(checkoutsCollection)}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, id string) (*domain.Checkout, error) {
	var doc checkoutDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout: %w", err)
	}
	return fromDocument(&doc)
}

func (m *MongoStore) Put(ctx context.Context, checkout *domain.Checkout) error {
	if checkout.Version == 0 {
		doc := toDocument(checkout, 1)
		if _, err := m.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrVersionConflict
			}
			return fmt.Errorf("failed to insert checkout: %w", err)
		}
		checkout.Version = 1
		return nil
	}

	filter := bson.M{
		"_id":     checkout.ID,
		"version": checkout.Version,
		"status":  bson.M{"$in": statusesUpTo(checkout.Status)},
	}
	res, err := m.collection.ReplaceOne(ctx, filter, toDocument(checkout, checkout.Version+1))
	if err != nil {
		return fmt.Errorf("failed to replace checkout: %w", err)
	}
	if res.MatchedCount == 0 {
		return m.explainMiss(ctx, checkout)
	}

	checkout.Version++
	return nil
}

func (m *MongoStore) CompareAndSwapStatus(ctx context.Context, checkout *domain.Checkout, expected domain.CheckoutStatus) error {
	if !domain.CanTransitionTo(expected, checkout.Status) {
		return domain.ErrIllegalTransition
	}

	doc := toDocument(checkout, 0)
	update := bson.M{
		"$set": bson.M{
			"session_id":   doc.SessionID,
			"line_items":   doc.LineItems,
			"currency":     doc.Currency,
			"status":       doc.Status,
			"customer":     doc.Customer,
			"totals":       doc.Totals,
			"updated_at":   doc.UpdatedAt,
			"payment_id":   doc.PaymentID,
			"order_id":     doc.OrderID,
			"completed_at": doc.CompletedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	var updated checkoutDocument
	err := m.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": checkout.ID, "status": string(expected)},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := m.Get(ctx, checkout.ID); getErr != nil {
			return getErr
		}
		return ErrStatusConflict
	}
	if err != nil {
		return fmt.Errorf("failed to swap checkout status: %w", err)
	}

	checkout.Version = updated.Version
	return nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.collection.Database().Client().Disconnect(ctx)
}

func (m *MongoStore) explainMiss(ctx context.Context, checkout *domain.Checkout) error {
	current, err := m.Get(ctx, checkout.ID)
	if err != nil {
		return err
	}
	if current.Version != checkout.Version {
		return ErrVersionConflict
	}
	return domain.ErrIllegalTransition
}

func statusesUpTo(s domain.CheckoutStatus) []string {
	var out []string
	for _, st := range orderedStatuses {
		out = append(out, string(st))
		if st == s {
			break
		}
	}
	return out
}

func toDocument(c *domain.Checkout, version int64) *checkoutDocument {
	items := make([]lineItemDocument, 0, len(c.LineItems))
	for _, item := range c.LineItems {
		items = append(items, lineItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			LineTotal: item.LineTotal.String(),
		})
	}
	return &checkoutDocument{
		ID:        c.ID,
		SessionID: c.SessionID,
		LineItems: items,
		Currency:  c.Currency,
		Status:    string(c.Status),
		Customer:  c.Customer,
		Totals: totalsDocument{
			Subtotal: c.Totals.Subtotal.String(),
			Tax:      c.Totals.Tax.String(),
			Shipping: c.Totals.Shipping.String(),
			Total:    c.Totals.Total.String(),
			Currency: c.Totals.Currency,
		},
		Version:     version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		PaymentID:   c.PaymentID,
		OrderID:     c.OrderID,
		CompletedAt: c.CompletedAt,
	}
}

func fromDocument(doc *checkoutDocument) (*domain.Checkout, error) {
	items := make([]domain.LineItem, 0, len(doc.LineItems))
	for _, item := range doc.LineItems {
		unit, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("decode unit price: %w", err)
		}
		total, err := decimal.NewFromString(item.LineTotal)
		if err != nil {
			return nil, fmt.Errorf("decode line total: %w", err)
		}
		items = append(items, domain.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: unit,
			LineTotal: total,
		})
	}

	totals, err := decodeTotals(doc.Totals)
	if err != nil {
		return nil, err
	}

	return &domain.Checkout{
		ID:          doc.ID,
		SessionID:   doc.SessionID,
		LineItems:   items,
		Currency:    doc.Currency,
		Status:      domain.CheckoutStatus(doc.Status),
		Customer:    doc.Customer,
		Totals:      totals,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		PaymentID:   doc.PaymentID,
		OrderID:     doc.OrderID,
		CompletedAt: doc.CompletedAt,
	}, nil
}

func decodeTotals(t totalsDocument) (domain.Totals, error) {
	values := make([]decimal.Decimal, 4)
	for i, raw := range []string{t.Subtotal, t.Tax, t.Shipping, t.Total} {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Totals{}, fmt.Errorf("decode totals: %w", err)
		}
		values[i] = v
	}
	return domain.Totals{
		Subtotal: values[0],
		Tax:      values[1],
		Shipping: values[2],
		Total:    values[3],
		Currency: t.Currency,
	}, nil
}
