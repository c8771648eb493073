package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const mongoNS = "volunteerhub.collections"

func mockMongo(mt *mtest.T) *Mongo {
	return &Mongo{client: mt.Client, col: mt.Coll}
}

func TestDependentsFirst(t *testing.T) {
	writes := []Write{{Name: string(Events), Version: 3}, {Name: string(Attendance), Version: 2}}

	got := dependentsFirst(writes)
	assert.Equal(t, string(Attendance), got[0].Name)
	assert.Equal(t, string(Events), got[1].Name)
	assert.Equal(t, string(Events), writes[0].Name, "input must stay untouched")
}

func TestMongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load missing is empty", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoNS, mtest.FirstBatch))

		b, err := mockMongo(mt).Load(context.Background(), "users")
		require.NoError(mt, err)
		assert.Zero(mt, b.Version)
	})

	mt.Run("load returns body and version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoNS, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "events"}, {Key: "body", Value: `[]`}, {Key: "version", Value: int64(4)}}))

		b, err := mockMongo(mt).Load(context.Background(), "events")
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), b.Version)
		assert.Equal(mt, `[]`, string(b.Data))
	})

	mt.Run("single write misses version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := mockMongo(mt).Commit(context.Background(), []Write{{Name: "events", Data: []byte(`[]`), Version: 2}})
		assert.ErrorIs(mt, err, ErrConflict)
	})

	// A cascade delete racing an attendance post: the stale attendance
	// version is caught before anything is written, so the event survives
	// and the retry sees it.
	mt.Run("stale version writes nothing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoNS, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "events"}, {Key: "version", Value: int64(3)}},
			bson.D{{Key: "_id", Value: "attendance"}, {Key: "version", Value: int64(3)}},
		))

		err := mockMongo(mt).Commit(context.Background(), []Write{
			{Name: "events", Data: []byte(`[]`), Version: 3},
			{Name: "attendance", Data: []byte(`{}`), Version: 2},
		})
		assert.ErrorIs(mt, err, ErrConflict)
	})

	// Only the insert path turns a duplicate key into ErrConflict, so the
	// result shows the attendance insert ran before the events update.
	mt.Run("dependent collection is written first", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, mongoNS, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "events"}, {Key: "version", Value: int64(3)}}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}),
		)

		err := mockMongo(mt).Commit(context.Background(), []Write{
			{Name: "events", Data: []byte(`[]`), Version: 3},
			{Name: "attendance", Data: []byte(`{}`), Version: 0},
		})
		assert.ErrorIs(mt, err, ErrConflict)
	})

	mt.Run("ordered commit applies every write", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, mongoNS, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "events"}, {Key: "version", Value: int64(3)}},
				bson.D{{Key: "_id", Value: "attendance"}, {Key: "version", Value: int64(2)}},
			),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		err := mockMongo(mt).Commit(context.Background(), []Write{
			{Name: "events", Data: []byte(`[]`), Version: 3},
			{Name: "attendance", Data: []byte(`{}`), Version: 2},
		})
		assert.NoError(mt, err)
	})
}
