// Package mongodb hosts the MongoDB client constructor shared by the
// persistence adapters.
package mongodb

import (
	"context"
	"fmt"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const connectTimeout = 5 * time.Second

// Connect dials the database and verifies it answers a ping before
// handing the client out.
func Connect(ctx context.Context, host string, port int) (*mongodriver.Client, error) {
	uri := fmt.Sprintf("mongodb://%s:%d", host, port)
	client, err := mongodriver.Connect(options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
