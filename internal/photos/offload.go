package photos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"volunteerhub/internal/cloudinary"
	"volunteerhub/internal/metrics"
	"volunteerhub/internal/model"
	"volunteerhub/internal/queue"
)

// Offloader moves inline gallery images to the CDN and removes CDN assets
// of deleted photos.
type Offloader struct {
	photos   *Service
	uploader Uploader
	logger   *slog.Logger
}

// NewOffloader creates an offloader.
func NewOffloader(photos *Service, uploader Uploader, logger *slog.Logger) *Offloader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Offloader{photos: photos, uploader: uploader, logger: logger}
}

// Run handles messages until the channel closes.
func (o *Offloader) Run(ctx context.Context, messages <-chan queue.Message) {
	for msg := range messages {
		if err := o.Handle(ctx, msg); err != nil {
			o.logger.ErrorContext(ctx, "offload failed", "kind", msg.Kind, "body", msg.Body, "err", err)
		}
	}
}

// Handle processes one queue message. Unknown kinds are ignored.
func (o *Offloader) Handle(ctx context.Context, msg queue.Message) (err error) {
	switch msg.Kind {
	case queue.KindPhotoAdded:
		err = o.offload(ctx, msg.Body)
	case queue.KindPhotoDeleted:
		err = o.uploader.Destroy(ctx, msg.Body)
	default:
		return nil
	}
	metrics.ObserveJob(msg.Kind, err)
	return err
}

func (o *Offloader) offload(ctx context.Context, id string) error {
	photo, err := o.photos.Get(ctx, id)
	if errors.Is(err, model.ErrPhotoNotFound) {
		o.logger.InfoContext(ctx, "photo gone before offload", "photo", id)
		return nil
	}
	if err != nil {
		return err
	}
	if !isDataURL(photo.ImageURL) {
		return nil
	}

	res, err := o.uploader.Upload(ctx, cloudinary.Source{DataURL: photo.ImageURL})
	if err != nil {
		return fmt.Errorf("upload photo %s: %w", id, err)
	}
	if err := o.photos.SetImage(ctx, id, res.SecureURL, res.PublicID); err != nil {
		if errors.Is(err, model.ErrPhotoNotFound) {
			// deleted while uploading
			return o.uploader.Destroy(ctx, res.PublicID)
		}
		return err
	}
	o.logger.InfoContext(ctx, "photo offloaded", "photo", id, "public_id", res.PublicID)
	return nil
}
