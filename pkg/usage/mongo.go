package usage

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
)

// Default MongoDB names.
const (
	DefaultDatabase   = "depglobe"
	DefaultCollection = "artifacts"
)

// MongoStore keeps the artifact as a GeoJSON string inside one MongoDB
// document, keyed by artifact name.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	name       string
	logger     *log.Logger
}

type artifactDoc struct {
	Name      string    `bson:"_id"`
	GeoJSON   string    `bson:"geojson"`
	Features  int       `bson:"features"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore connects to uri and stores the artifact called name in
// database/artifacts.
func NewMongoStore(ctx context.Context, uri, database, name string, logger *log.Logger) (*MongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if name == "" {
		name = DefaultFile
	}
	if logger == nil {
		logger = log.Default()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, deperrors.Wrap(deperrors.ErrCodeNetwork, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, deperrors.Wrap(deperrors.ErrCodeNetwork, err, "ping mongodb")
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(DefaultCollection),
		name:       name,
		logger:     logger,
	}, nil
}

func (s *MongoStore) Load(ctx context.Context) ([]Usage, error) {
	raw, err := s.raw(ctx)
	if err != nil || raw == nil {
		return nil, err
	}
	usages, skipped, err := Read(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed features", "artifact", s.name, "count", skipped)
	}
	return usages, nil
}

func (s *MongoStore) Save(ctx context.Context, usages []Usage) error {
	data, err := Marshal(usages)
	if err != nil {
		return err
	}
	doc := artifactDoc{
		Name:      s.name,
		GeoJSON:   string(data),
		Features:  len(usages),
		UpdatedAt: time.Now().UTC(),
	}
	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": s.name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return deperrors.Wrap(deperrors.ErrCodeNetwork, err, "save artifact %s", s.name)
	}
	return nil
}

func (s *MongoStore) Raw(ctx context.Context) ([]byte, error) {
	raw, err := s.raw(ctx)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return Marshal(nil)
	}
	return raw, nil
}

func (s *MongoStore) raw(ctx context.Context) ([]byte, error) {
	var doc artifactDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": s.name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, deperrors.Wrap(deperrors.ErrCodeNetwork, err, "load artifact %s", s.name)
	}
	return []byte(doc.GeoJSON), nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var (
	_ Store = (*MongoStore)(nil)
	_ Raw   = (*MongoStore)(nil)
)
