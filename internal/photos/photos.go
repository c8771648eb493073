// Package photos keeps the event photo gallery.
package photos

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"volunteerhub/internal/cloudinary"
	"volunteerhub/internal/metrics"
	"volunteerhub/internal/model"
	"volunteerhub/internal/queue"
	"volunteerhub/internal/store"
)

var validate = validator.New()

// Input describes a new gallery photo. ImageURL may be an inline data: URL;
// it is moved to the CDN in the background when a queue is attached.
// An empty Date means now.
type Input struct {
	ImageURL    string `json:"imageUrl" validate:"required"`
	PublicID    string `json:"publicId"`
	Description string `json:"description"`
	EventName   string `json:"eventName" validate:"required"`
	Date        string `json:"date"`
}

// Uploader stores images on a CDN.
type Uploader interface {
	Upload(ctx context.Context, src cloudinary.Source) (*cloudinary.UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}

// Service owns the eventPhotos collection.
type Service struct {
	store    *store.Store
	queue    queue.Queue
	uploader Uploader
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithQueue publishes offload notices after adds and deletes.
func WithQueue(q queue.Queue) Option {
	return func(s *Service) { s.queue = q }
}

// WithUploader lets Upload push images to the CDN directly.
func WithUploader(u Uploader) Option {
	return func(s *Service) { s.uploader = u }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a gallery service on st.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{store: st, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func isDataURL(u string) bool { return strings.HasPrefix(u, "data:") }

func indexOf(photos []model.EventPhoto, id string) int {
	return slices.IndexFunc(photos, func(p model.EventPhoto) bool { return p.ID == id })
}

// Add stores a new photo.
func (s *Service) Add(ctx context.Context, in Input) (photo model.EventPhoto, err error) {
	defer func() { metrics.Observe("photos.add", err) }()

	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.EventName = strings.TrimSpace(in.EventName)
	in.Date = strings.TrimSpace(in.Date)
	if err := validate.Struct(in); err != nil {
		return model.EventPhoto{}, fmt.Errorf("%w: %v", model.ErrInvalidPhoto, err)
	}
	if in.Date == "" {
		in.Date = time.Now().UTC().Format(time.RFC3339)
	}
	photo = model.EventPhoto{
		ID:          uuid.NewString(),
		ImageURL:    in.ImageURL,
		Description: strings.TrimSpace(in.Description),
		EventName:   in.EventName,
		Date:        in.Date,
		PublicID:    in.PublicID,
	}
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		photos, err := tx.Photos()
		if err != nil {
			return err
		}
		return tx.PutPhotos(append(photos, photo))
	})
	if err != nil {
		return model.EventPhoto{}, err
	}
	if isDataURL(photo.ImageURL) {
		s.notify(ctx, queue.Message{Kind: queue.KindPhotoAdded, Body: photo.ID})
	}
	return photo, nil
}

// Update replaces the description and event label of a photo.
func (s *Service) Update(ctx context.Context, id, description, eventName string) (photo model.EventPhoto, err error) {
	defer func() { metrics.Observe("photos.update", err) }()

	eventName = strings.TrimSpace(eventName)
	if eventName == "" {
		return model.EventPhoto{}, fmt.Errorf("%w: event name required", model.ErrInvalidPhoto)
	}
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		photos, err := tx.Photos()
		if err != nil {
			return err
		}
		i := indexOf(photos, id)
		if i < 0 {
			return model.ErrPhotoNotFound
		}
		photos[i].Description = strings.TrimSpace(description)
		photos[i].EventName = eventName
		photo = photos[i]
		return tx.PutPhotos(photos)
	})
	if err != nil {
		return model.EventPhoto{}, err
	}
	return photo, nil
}

// Delete removes a photo and returns what was removed.
func (s *Service) Delete(ctx context.Context, id string) (photo model.EventPhoto, err error) {
	defer func() { metrics.Observe("photos.delete", err) }()

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		photos, err := tx.Photos()
		if err != nil {
			return err
		}
		i := indexOf(photos, id)
		if i < 0 {
			return model.ErrPhotoNotFound
		}
		photo = photos[i]
		return tx.PutPhotos(slices.Delete(photos, i, i+1))
	})
	if err != nil {
		return model.EventPhoto{}, err
	}
	if photo.PublicID != "" {
		s.notify(ctx, queue.Message{Kind: queue.KindPhotoDeleted, Body: photo.PublicID})
	}
	return photo, nil
}

// List returns the gallery in insertion order.
func (s *Service) List(ctx context.Context) ([]model.EventPhoto, error) {
	return s.store.Photos(ctx)
}

// Get returns one photo.
func (s *Service) Get(ctx context.Context, id string) (model.EventPhoto, error) {
	photos, err := s.store.Photos(ctx)
	if err != nil {
		return model.EventPhoto{}, err
	}
	i := indexOf(photos, id)
	if i < 0 {
		return model.EventPhoto{}, model.ErrPhotoNotFound
	}
	return photos[i], nil
}

// SetImage points a photo at a hosted image.
func (s *Service) SetImage(ctx context.Context, id, url, publicID string) error {
	return s.store.Update(ctx, func(tx *store.Tx) error {
		photos, err := tx.Photos()
		if err != nil {
			return err
		}
		i := indexOf(photos, id)
		if i < 0 {
			return model.ErrPhotoNotFound
		}
		photos[i].ImageURL = url
		photos[i].PublicID = publicID
		return tx.PutPhotos(photos)
	})
}

// Upload hosts raw image bytes. Without an uploader the image comes back
// as an inline data URL and an empty public id.
func (s *Service) Upload(ctx context.Context, data []byte, filename string) (url, publicID string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: empty image", model.ErrInvalidPhoto)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("%w: unsupported content type %s", model.ErrInvalidPhoto, contentType)
	}
	if s.uploader == nil {
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), "", nil
	}
	res, err := s.uploader.Upload(ctx, cloudinary.Source{Bytes: data, Filename: filename})
	if err != nil {
		return "", "", err
	}
	return res.SecureURL, res.PublicID, nil
}

func (s *Service) notify(ctx context.Context, msg queue.Message) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Publish(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "queue publish failed", "kind", msg.Kind, "body", msg.Body, "err", err)
	}
}
