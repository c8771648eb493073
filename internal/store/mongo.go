package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo stores one document per collection, each guarded by its version.
// Commits that touch several collections run in a transaction when the
// server is a replica set or mongos. A standalone server gets the ordered
// fallback in commitOrdered.
type Mongo struct {
	client       *mongo.Client
	col          *mongo.Collection
	transactions bool
}

type mongoDoc struct {
	Name      string    `bson:"_id"`
	Body      string    `bson:"body"`
	Version   int64     `bson:"version"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// NewMongo connects and pings the server.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	db := client.Database(database)
	return &Mongo{client: client, col: db.Collection(collectionsTable), transactions: supportsTransactions(ctx, db)}, nil
}

// supportsTransactions reports whether the server is a replica set member
// or a mongos router.
func supportsTransactions(ctx context.Context, db *mongo.Database) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}

// Load finds the collection document.
func (m *Mongo) Load(ctx context.Context, name string) (Blob, error) {
	var doc mongoDoc
	if err := m.col.FindOne(ctx, bson.M{"_id": name}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Blob{}, nil
		}
		return Blob{}, err
	}
	return Blob{Data: []byte(doc.Body), Version: doc.Version}, nil
}

// Commit applies writes all-or-nothing when transactions are available.
func (m *Mongo) Commit(ctx context.Context, writes []Write) error {
	now := time.Now().UTC()
	if len(writes) == 1 {
		return m.apply(ctx, writes[0], now)
	}
	if !m.transactions {
		return m.commitOrdered(ctx, writes, now)
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, w := range writes {
			if err := m.apply(sc, w, now); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// commitOrdered checks every version up front, then writes dependent
// collections before the ones they reference. A conflict part way through
// may leave a dependent write applied, never an owner removed ahead of
// its dependents.
func (m *Mongo) commitOrdered(ctx context.Context, writes []Write, now time.Time) error {
	if err := m.checkVersions(ctx, writes); err != nil {
		return err
	}
	for _, w := range dependentsFirst(writes) {
		if err := m.apply(ctx, w, now); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mongo) checkVersions(ctx context.Context, writes []Write) error {
	names := make([]string, 0, len(writes))
	for _, w := range writes {
		names = append(names, w.Name)
	}
	cur, err := m.col.Find(ctx, bson.M{"_id": bson.M{"$in": names}},
		options.Find().SetProjection(bson.M{"version": 1}))
	if err != nil {
		return err
	}
	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return err
	}
	stored := make(map[string]int64, len(docs))
	for _, d := range docs {
		stored[d.Name] = d.Version
	}
	for _, w := range writes {
		if stored[w.Name] != w.Version {
			return ErrConflict
		}
	}
	return nil
}

// dependentsFirst reverses writes. They arrive in collection order, where
// owners (users, events) precede the entries that refer to them.
func dependentsFirst(writes []Write) []Write {
	out := slices.Clone(writes)
	slices.Reverse(out)
	return out
}

// apply inserts a new document or updates an existing one guarded by version.
func (m *Mongo) apply(ctx context.Context, w Write, now time.Time) error {
	if w.Version == 0 {
		_, err := m.col.InsertOne(ctx, mongoDoc{Name: w.Name, Body: string(w.Data), Version: 1, UpdatedAt: now})
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return err
	}
	res, err := m.col.UpdateOne(ctx,
		bson.M{"_id": w.Name, "version": w.Version},
		bson.M{"$set": bson.M{"body": string(w.Data), "version": w.Version + 1, "updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Disconnect(context.Background())
}
