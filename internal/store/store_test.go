package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"volunteerhub/internal/credential"
	"volunteerhub/internal/model"
)

func TestMain(m *testing.M) {
	credential.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

func newMemoryStore(t *testing.T, opts ...Option) (*Store, *Memory) {
	t.Helper()
	backend := NewMemory()
	s, err := New(context.Background(), backend, opts...)
	require.NoError(t, err)
	return s, backend
}

func TestNew_SeedsSingleApprovedAdmin(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemoryStore(t)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	admin := users[0]
	assert.Equal(t, AdminID, admin.ID)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Equal(t, DefaultAdminName, admin.Name)
	assert.True(t, admin.Approved)
	assert.True(t, credential.Check(DefaultAdminPassword, admin.Password))

	events, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
	photos, err := s.Photos(ctx)
	require.NoError(t, err)
	assert.Empty(t, photos)
	att, err := s.Attendance(ctx)
	require.NoError(t, err)
	assert.Empty(t, att)
	msgs, err := s.Messages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestNew_DoesNotReseedExistingData(t *testing.T) {
	ctx := context.Background()
	s, backend := newMemoryStore(t)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	users = append(users, model.User{ID: "v1", Role: model.RoleVolunteer, Name: "Vol", RollNo: "101"})
	require.NoError(t, s.SaveUsers(ctx, users))

	again, err := New(ctx, backend, WithAdmin("Someone Else", "other"))
	require.NoError(t, err)

	got, err := again.Users(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, DefaultAdminName, got[0].Name)
}

func TestWithAdmin_OverridesSeed(t *testing.T) {
	s, _ := newMemoryStore(t, WithAdmin("Coordinator", "pa55"))

	users, err := s.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Coordinator", users[0].Name)
	assert.True(t, credential.Check("pa55", users[0].Password))
}

func TestReadOnUnwrittenBackend_ReturnsDefaultEmpty(t *testing.T) {
	tx := &Tx{ctx: context.Background(), backend: NewMemory(), entries: map[Collection]*entry{}}

	events, err := tx.Events()
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	att, err := tx.Attendance()
	require.NoError(t, err)
	assert.NotNil(t, att)
	assert.Empty(t, att)
}

func TestView_RejectsWrites(t *testing.T) {
	s, _ := newMemoryStore(t)

	err := s.View(context.Background(), func(tx *Tx) error {
		return tx.PutEvents([]model.Event{{ID: "e1"}})
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestUpdate_WholeCollectionReplace(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemoryStore(t)

	require.NoError(t, s.SaveEvents(ctx, []model.Event{{ID: "e1", Name: "One"}, {ID: "e2", Name: "Two"}}))
	require.NoError(t, s.SaveEvents(ctx, []model.Event{{ID: "e2", Name: "Two"}}))

	events, err := s.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)
	assert.NotNil(t, events[0].Registrations)
}

func TestUpdate_CommitsOnlyTouchedCollections(t *testing.T) {
	ctx := context.Background()
	s, backend := newMemoryStore(t)

	before, err := backend.Load(ctx, string(Users))
	require.NoError(t, err)

	require.NoError(t, s.SaveMessages(ctx, []model.ChatMessage{{ID: "m1", Text: "hi"}}))

	after, err := backend.Load(ctx, string(Users))
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestUpdate_FnErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemoryStore(t)

	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.PutEvents([]model.Event{{ID: "e1"}}); err != nil {
			return err
		}
		return model.ErrEventNotFound
	})
	assert.ErrorIs(t, err, model.ErrEventNotFound)

	events, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

// racingBackend lets another writer commit just before the first Commit call.
type racingBackend struct {
	*Memory
	raced bool
}

func (r *racingBackend) Commit(ctx context.Context, writes []Write) error {
	if !r.raced {
		r.raced = true
		b, _ := r.Memory.Load(ctx, string(Events))
		data, _ := codec.Marshal([]model.Event{{ID: "intruder"}})
		if err := r.Memory.Commit(ctx, []Write{{Name: string(Events), Data: data, Version: b.Version}}); err != nil {
			return err
		}
	}
	return r.Memory.Commit(ctx, writes)
}

func TestUpdate_RetriesAfterConflict(t *testing.T) {
	ctx := context.Background()
	s, mem := newMemoryStore(t)
	racer := &racingBackend{Memory: mem}
	s.backend = racer

	calls := 0
	err := s.Update(ctx, func(tx *Tx) error {
		calls++
		events, err := tx.Events()
		if err != nil {
			return err
		}
		return tx.PutEvents(append(events, model.Event{ID: "mine"}))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	events, err := s.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "intruder", events[0].ID)
	assert.Equal(t, "mine", events[1].ID)
}

func TestMemoryCommit_IsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Commit(ctx, []Write{{Name: "a", Data: []byte(`1`)}}))

	err := m.Commit(ctx, []Write{
		{Name: "b", Data: []byte(`2`), Version: 0},
		{Name: "a", Data: []byte(`3`), Version: 0},
	})
	assert.ErrorIs(t, err, ErrConflict)

	b, err := m.Load(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, b.Version)
	a, err := m.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`1`), a.Data)
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend(context.Background(), Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	_, err = OpenBackend(context.Background(), Options{Backend: "cassette"})
	assert.Error(t, err)
}
