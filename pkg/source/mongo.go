// Package source implements the read-only plaintext row stream the
// builder scans from: connect, count for preallocation, batched Find,
// one collection per declared table.
package source

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rsse-builder/pkg/builderr"
)

// Row is one plaintext record, keyed by column name. Values are the
// driver's native decoded types (string, int64, float64, ...); the
// row encryptor is responsible for any further type assertions.
type Row = bson.M

// Source is the read-only plaintext connection.
type Source struct {
	db *mongo.Database
}

// Connect opens the plaintext database: connect, then ping to fail
// fast on an unreachable host.
func Connect(ctx context.Context, uri, dbName string) (*Source, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, builderr.Store(err, "source: connect to %s failed", uri)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, builderr.Store(err, "source: ping failed")
	}
	return &Source{db: client.Database(dbName)}, nil
}

// Close disconnects the plaintext client.
func (s *Source) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// Count returns the row count for a table.
func (s *Source) Count(ctx context.Context, table string) (int64, error) {
	n, err := s.db.Collection(table).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, builderr.Store(err, "source: count %s failed", table)
	}
	return n, nil
}

// ScanTable reads every row of a declared table in batches and
// invokes fn for each. Row order is unspecified — the builder treats
// per-row operations as embarrassingly parallel.
func (s *Source) ScanTable(ctx context.Context, table string, batchSize int32, fn func(Row) error) error {
	opts := options.Find().SetNoCursorTimeout(true).SetBatchSize(batchSize)
	cur, err := s.db.Collection(table).Find(ctx, bson.D{}, opts)
	if err != nil {
		return builderr.Store(err, "source: find on %s failed", table)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row Row
		if err := cur.Decode(&row); err != nil {
			return builderr.Data("source: decode row in %s failed: %v", table, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return cur.Err()
}

// DefaultScanTimeout is a time budget for a single table's
// scan-and-encrypt pass. ScanTable does not apply it; a scan is
// bounded only by the ctx it is given.
const DefaultScanTimeout = 10 * time.Minute

// LoadSchemaDocs reads the "schema" and "foreign_keys" collections
// the build-time schema declaration lives in, for schema.LoadFromBSON
// to decode.
func (s *Source) LoadSchemaDocs(ctx context.Context) (tableDocs, fkDocs []bson.M, err error) {
	tCur, err := s.db.Collection("schema").Find(ctx, bson.D{})
	if err != nil {
		return nil, nil, builderr.Store(err, "source: find on schema failed")
	}
	defer tCur.Close(ctx)
	if err := tCur.All(ctx, &tableDocs); err != nil {
		return nil, nil, builderr.Data("source: decode schema docs failed: %v", err)
	}

	fCur, err := s.db.Collection("foreign_keys").Find(ctx, bson.D{})
	if err != nil {
		return nil, nil, builderr.Store(err, "source: find on foreign_keys failed")
	}
	defer fCur.Close(ctx)
	if err := fCur.All(ctx, &fkDocs); err != nil {
		return nil, nil, builderr.Data("source: decode foreign_key docs failed: %v", err)
	}
	return tableDocs, fkDocs, nil
}
