package state

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hydroplant/master-controller/internal/payload"
)

const (
	defaultDatabase     = "hydroplant"
	stateCollection     = "state"
	measureCollection   = "measurements"
	logCollection       = "logs"
	defaultMongoTimeout = 5 * time.Second
)

// MongoOptions configures the Mongo-backed Store.
type MongoOptions struct {
	Client   *mongodriver.Client
	Database string
	Timeout  time.Duration
}

// Mongo persists state in the hydroplant database: the state collection
// holds a single document of unique id to value, measurements and logs
// are append-only.
type Mongo struct {
	state        *mongodriver.Collection
	measurements *mongodriver.Collection
	logs         *mongodriver.Collection
	timeout      time.Duration
}

func NewMongo(opts MongoOptions) (*Mongo, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	database := opts.Database
	if database == "" {
		database = defaultDatabase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}
	db := opts.Client.Database(database)
	return &Mongo{
		state:        db.Collection(stateCollection),
		measurements: db.Collection(measureCollection),
		logs:         db.Collection(logCollection),
		timeout:      timeout,
	}, nil
}

// LoadState reads the single state document, stripping the driver's _id
// field. A missing document is an empty state, not an error.
func (m *Mongo) LoadState(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var doc bson.M
	err := m.state.FindOne(ctx, bson.D{}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	delete(doc, "_id")
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

// SaveState replaces the single state document wholesale.
func (m *Mongo) SaveState(ctx context.Context, snapshot map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	doc := make(bson.M, len(snapshot))
	for k, v := range snapshot {
		doc[k] = v
	}
	_, err := m.state.ReplaceOne(ctx, bson.D{}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) AddMeasurement(ctx context.Context, nodeID, sensorID string, data payload.Payload) error {
	return m.insert(ctx, m.measurements, nodeID, sensorID, data)
}

func (m *Mongo) AddLog(ctx context.Context, nodeID, sensorID string, data payload.Payload) error {
	return m.insert(ctx, m.logs, nodeID, sensorID, data)
}

func (m *Mongo) insert(ctx context.Context, coll *mongodriver.Collection, nodeID, sensorID string, data payload.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	doc := make(bson.M, len(data)+3)
	for k, v := range data {
		doc[k] = v
	}
	doc["node_id"] = nodeID
	doc["sensor_id"] = sensorID
	doc["time"] = time.Now().UTC()
	_, err := coll.InsertOne(ctx, doc)
	return err
}
