package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trades-api/internal/models"
	"trades-api/pkg/database"
)

// tradeDocument is the stored shape of a trade. decimal.Decimal has no BSON
// codec, so amounts travel as Decimal128.
type tradeDocument struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	UTCTime   time.Time            `bson:"utc_time"`
	Operation string               `bson:"operation"`
	Market    string               `bson:"market"`
	BaseCoin  string               `bson:"base_coin"`
	QuoteCoin string               `bson:"quote_coin"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Price     primitive.Decimal128 `bson:"price"`
}

// MongoTradeRepository implements TradeRepository using MongoDB
type MongoTradeRepository struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

// NewTradeRepository creates a new MongoDB trade repository
func NewTradeRepository(db *database.MongoDB, collection string) *MongoTradeRepository {
	return &MongoTradeRepository{
		db:         db,
		collection: db.Collection(collection),
	}
}

// InsertMany appends trades with an unordered bulk insert
func (r *MongoTradeRepository) InsertMany(ctx context.Context, trades []models.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(trades))
	for i, t := range trades {
		doc, err := toDocument(t)
		if err != nil {
			return 0, fmt.Errorf("%w: trade %d: %v", models.ErrStorage, i, err)
		}
		docs = append(docs, doc)
	}

	result, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		inserted := 0
		if result != nil {
			inserted = len(result.InsertedIDs)
		}
		return inserted, fmt.Errorf("%w: failed to insert trades: %v", models.ErrStorage, err)
	}

	return len(result.InsertedIDs), nil
}

// FindUpTo returns every trade at or before cutoff
func (r *MongoTradeRepository) FindUpTo(ctx context.Context, cutoff time.Time) ([]models.Trade, error) {
	filter := bson.M{"utc_time": bson.M{"$lte": cutoff.UTC()}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find trades: %v", models.ErrRetrieval, err)
	}
	defer cursor.Close(ctx)

	var docs []tradeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: failed to decode trades: %v", models.ErrRetrieval, err)
	}

	trades := make([]models.Trade, 0, len(docs))
	for _, doc := range docs {
		t, err := fromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: trade %s: %v", models.ErrRetrieval, doc.ID.Hex(), err)
		}
		trades = append(trades, t)
	}

	return trades, nil
}

// Count returns the number of stored trades
func (r *MongoTradeRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count trades: %v", models.ErrRetrieval, err)
	}
	return n, nil
}

func (r *MongoTradeRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *MongoTradeRepository) Close() error {
	return r.db.Disconnect()
}

func toDocument(t models.Trade) (tradeDocument, error) {
	amount, ok := toDecimal128(t.Amount)
	if !ok {
		return tradeDocument{}, fmt.Errorf("amount %s does not fit a decimal128", t.Amount)
	}
	price, ok := toDecimal128(t.Price)
	if !ok {
		return tradeDocument{}, fmt.Errorf("price %s does not fit a decimal128", t.Price)
	}

	return tradeDocument{
		UTCTime:   t.UTCTime.UTC(),
		Operation: string(t.Operation),
		Market:    t.Market,
		BaseCoin:  t.BaseCoin,
		QuoteCoin: t.QuoteCoin,
		Amount:    amount,
		Price:     price,
	}, nil
}

// toDecimal128 converts from coefficient and exponent so large exponents are
// never expanded into a digit string.
func toDecimal128(d decimal.Decimal) (primitive.Decimal128, bool) {
	return primitive.ParseDecimal128FromBigInt(d.Coefficient(), int(d.Exponent()))
}

func fromDocument(doc tradeDocument) (models.Trade, error) {
	amount, err := decimal.NewFromString(doc.Amount.String())
	if err != nil {
		return models.Trade{}, fmt.Errorf("amount %s: %w", doc.Amount, err)
	}
	price, err := decimal.NewFromString(doc.Price.String())
	if err != nil {
		return models.Trade{}, fmt.Errorf("price %s: %w", doc.Price, err)
	}

	return models.Trade{
		UTCTime:   doc.UTCTime.UTC(),
		Operation: models.Operation(doc.Operation),
		Market:    doc.Market,
		BaseCoin:  doc.BaseCoin,
		QuoteCoin: doc.QuoteCoin,
		Amount:    amount,
		Price:     price,
	}, nil
}
