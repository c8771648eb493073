package photos

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"volunteerhub/internal/cloudinary"
	"volunteerhub/internal/credential"
	"volunteerhub/internal/model"
	"volunteerhub/internal/queue"
	"volunteerhub/internal/store"
)

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

func TestMain(m *testing.M) {
	credential.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

type fakeUploader struct {
	mu        sync.Mutex
	uploads   []cloudinary.Source
	destroyed []string
	err       error
	onUpload  func()
}

func (f *fakeUploader) Upload(_ context.Context, src cloudinary.Source) (*cloudinary.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, src)
	if f.onUpload != nil {
		f.onUpload()
	}
	return &cloudinary.UploadResult{PublicID: "gallery/p1", SecureURL: "https://cdn.example/p1.png"}, nil
}

func (f *fakeUploader) Destroy(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s, err := store.New(context.Background(), store.NewMemory())
	require.NoError(t, err)
	return NewService(s, opts...)
}

func input() Input {
	return Input{ImageURL: "https://cdn.example/a.jpg", Description: "Cleanup crew", EventName: "Beach cleanup", Date: "2024-03-10"}
}

func TestAddUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	p, err := svc.Add(ctx, input())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	updated, err := svc.Update(ctx, p.ID, "New caption", "Lake cleanup")
	require.NoError(t, err)
	assert.Equal(t, "New caption", updated.Description)
	assert.Equal(t, "Lake cleanup", updated.EventName)
	assert.Equal(t, p.ImageURL, updated.ImageURL)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	removed, err := svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, removed.ID)

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrPhotoNotFound)
	_, err = svc.Delete(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrPhotoNotFound)
	_, err = svc.Update(ctx, p.ID, "x", "y")
	assert.ErrorIs(t, err, model.ErrPhotoNotFound)
}

func TestAdd_Validates(t *testing.T) {
	svc := newService(t)
	in := input()
	in.EventName = " "
	_, err := svc.Add(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrInvalidPhoto)

	in = input()
	in.ImageURL = ""
	_, err = svc.Add(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrInvalidPhoto)
}

func TestAdd_DefaultsDateToNow(t *testing.T) {
	in := input()
	in.Date = ""
	before := time.Now().UTC().Truncate(time.Second)

	p, err := newService(t).Add(context.Background(), in)
	require.NoError(t, err)
	got, err := time.Parse(time.RFC3339, p.Date)
	require.NoError(t, err)
	assert.False(t, got.Before(before))
}

func TestAdd_PublishesOnlyInlineImages(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemory(4)
	svc := newService(t, WithQueue(q))

	_, err := svc.Add(ctx, input())
	require.NoError(t, err)

	in := input()
	in.ImageURL = pngDataURL
	p, err := svc.Add(ctx, in)
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := q.Consume(cctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Message{Kind: queue.KindPhotoAdded, Body: p.ID}, <-ch)
}

func TestDelete_PublishesPublicID(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemory(4)
	svc := newService(t, WithQueue(q))

	in := input()
	in.PublicID = "gallery/a"
	p, err := svc.Add(ctx, in)
	require.NoError(t, err)
	_, err = svc.Delete(ctx, p.ID)
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := q.Consume(cctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Message{Kind: queue.KindPhotoDeleted, Body: "gallery/a"}, <-ch)
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\n0000")

	url, publicID, err := newService(t).Upload(ctx, png, "a.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	assert.Empty(t, publicID)

	up := &fakeUploader{}
	url, publicID, err = newService(t, WithUploader(up)).Upload(ctx, png, "a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/p1.png", url)
	assert.Equal(t, "gallery/p1", publicID)
	require.Len(t, up.uploads, 1)
	assert.Equal(t, "a.png", up.uploads[0].Filename)

	_, _, err = newService(t).Upload(ctx, []byte("plain text"), "a.txt")
	assert.ErrorIs(t, err, model.ErrInvalidPhoto)
}

func TestOffloader_MovesInlineImage(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	up := &fakeUploader{}
	off := NewOffloader(svc, up, nil)

	in := input()
	in.ImageURL = pngDataURL
	p, err := svc.Add(ctx, in)
	require.NoError(t, err)

	require.NoError(t, off.Handle(ctx, queue.Message{Kind: queue.KindPhotoAdded, Body: p.ID}))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/p1.png", got.ImageURL)
	assert.Equal(t, "gallery/p1", got.PublicID)
	require.Len(t, up.uploads, 1)
	assert.Equal(t, pngDataURL, up.uploads[0].DataURL)

	// already hosted: nothing to do
	require.NoError(t, off.Handle(ctx, queue.Message{Kind: queue.KindPhotoAdded, Body: p.ID}))
	assert.Len(t, up.uploads, 1)
}

func TestOffloader_PhotoDeletedDuringUpload(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	in := input()
	in.ImageURL = pngDataURL
	p, err := svc.Add(ctx, in)
	require.NoError(t, err)

	up := &fakeUploader{}
	up.onUpload = func() {
		_, err := svc.Delete(ctx, p.ID)
		assert.NoError(t, err)
	}
	off := NewOffloader(svc, up, nil)

	require.NoError(t, off.Handle(ctx, queue.Message{Kind: queue.KindPhotoAdded, Body: p.ID}))
	assert.Equal(t, []string{"gallery/p1"}, up.destroyed)
}

func TestOffloader_DeleteAndErrors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	up := &fakeUploader{}
	off := NewOffloader(svc, up, nil)

	require.NoError(t, off.Handle(ctx, queue.Message{Kind: queue.KindPhotoDeleted, Body: "gallery/x"}))
	assert.Equal(t, []string{"gallery/x"}, up.destroyed)

	require.NoError(t, off.Handle(ctx, queue.Message{Kind: queue.KindPhotoAdded, Body: "missing"}))
	require.NoError(t, off.Handle(ctx, queue.Message{Kind: "checkin", Body: "x"}))

	in := input()
	in.ImageURL = pngDataURL
	p, err := svc.Add(ctx, in)
	require.NoError(t, err)
	up.err = errors.New("cdn down")
	assert.ErrorContains(t, off.Handle(ctx, queue.Message{Kind: queue.KindPhotoAdded, Body: p.ID}), "cdn down")
}
