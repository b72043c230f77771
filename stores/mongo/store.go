package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dispatch-gateway/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// record is the stored shape of a document. Data is kept as a native BSON
// document so the collections stay queryable from the mongo shell.
type record struct {
	ID        string    `bson:"_id"`
	Data      bson.Raw  `bson:"data"`
	CreatedBy string    `bson:"createdBy,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to uri and verifies the server answers a ping.
func NewStore(ctx context.Context, uri, database string) (*mongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logrus.WithField("database", database).Info("Connected to MongoDB")
	return &mongoStore{client: client, db: client.Database(database)}, nil
}

func (s *mongoStore) List(ctx context.Context, collection string) ([]*core.Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var records []record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	docs := make([]*core.Document, 0, len(records))
	for _, rec := range records {
		doc, err := fromRecord(collection, rec)
		if err != nil {
			logrus.WithError(err).WithField("document_id", rec.ID).Warn("Failed to convert document, skipping")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *mongoStore) Get(ctx context.Context, collection, id string) (*core.Document, error) {
	var rec record
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
		}
		return nil, err
	}
	return fromRecord(collection, rec)
}

func (s *mongoStore) Create(ctx context.Context, doc *core.Document) (string, error) {
	if doc.Collection == "" {
		return "", fmt.Errorf("collection cannot be empty")
	}
	data, err := toBSON(doc.Data)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := record{ID: ulid.Make().String(), Data: data, CreatedBy: doc.CreatedBy, CreatedAt: now, UpdatedAt: now}
	if _, err := s.db.Collection(doc.Collection).InsertOne(ctx, rec); err != nil {
		logrus.WithError(err).WithField("collection", doc.Collection).Error("Failed to create document")
		return "", err
	}

	doc.ID, doc.CreatedAt, doc.UpdatedAt = rec.ID, now, now
	logrus.WithFields(logrus.Fields{"collection": doc.Collection, "document_id": rec.ID}).Info("Document created successfully")
	return rec.ID, nil
}

func (s *mongoStore) Update(ctx context.Context, doc *core.Document) error {
	data, err := toBSON(doc.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.Collection(doc.Collection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "data", Value: data}, {Key: "updatedAt", Value: now}}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("document %s/%s: %w", doc.Collection, doc.ID, core.ErrNotFound)
	}
	doc.UpdatedAt = now
	return nil
}

func (s *mongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("document %s/%s: %w", collection, id, core.ErrNotFound)
	}
	return nil
}

func (s *mongoStore) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	return int(n), err
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// toBSON converts a JSON object into a BSON document.
func toBSON(data json.RawMessage) (bson.Raw, error) {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, fmt.Errorf("document data must be a JSON object: %w", err)
	}
	return bson.Marshal(d)
}

func fromRecord(collection string, rec record) (*core.Document, error) {
	data := json.RawMessage(`{}`)
	if len(rec.Data) > 0 {
		out, err := bson.MarshalExtJSON(rec.Data, false, false)
		if err != nil {
			return nil, err
		}
		data = out
	}
	return &core.Document{
		ID:         rec.ID,
		Collection: collection,
		Data:       data,
		CreatedBy:  rec.CreatedBy,
		CreatedAt:  rec.CreatedAt.UTC(),
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}, nil
}
