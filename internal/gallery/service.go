package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/myasnails/salonbook/internal/model"
)

type Store interface {
	List(ctx context.Context) ([]model.GalleryItem, error)
	Get(ctx context.Context, id string) (model.GalleryItem, error)
	Insert(ctx context.Context, item model.GalleryItem) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Item is a gallery entry with its resolved public URL.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Service struct {
	store  Store
	blobs  BlobStore
	logger *slog.Logger
}

func NewService(store Store, blobs BlobStore, logger *slog.Logger) *Service {
	return &Service{store: store, blobs: blobs, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Item, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, Item{
			ID:    r.ID,
			Title: r.Title,
			URL:   s.blobs.PublicURL(r.ImagePath),
		})
	}
	return items, nil
}

// Upload stores the image bytes first and only then writes the row, so a
// listed photo is always fetchable.
func (s *Service) Upload(ctx context.Context, title, filename string, data []byte) (Item, error) {
	if len(data) == 0 {
		return Item{}, fmt.Errorf("empty image")
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return Item{}, fmt.Errorf("not an image: %s", contentType)
	}

	id := uuid.NewString()
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = extensionFor(contentType)
	}
	imagePath := id + ext

	if err := s.blobs.Put(ctx, imagePath, contentType, data); err != nil {
		return Item{}, err
	}
	if err := s.store.Insert(ctx, model.GalleryItem{ID: id, Title: title, ImagePath: imagePath}); err != nil {
		// Orphaned blob; try to reclaim it before reporting the failure.
		if delErr := s.blobs.Delete(ctx, imagePath); delErr != nil {
			s.logger.Warn("orphaned gallery blob", "path", imagePath, "err", delErr)
		}
		return Item{}, err
	}
	return Item{ID: id, Title: title, URL: s.blobs.PublicURL(imagePath)}, nil
}

// Remove deletes the blob and then the row. A row-delete failure after the
// blob is gone leaves a dead entry, so it is surfaced loudly.
func (s *Service) Remove(ctx context.Context, id string) error {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, item.ImagePath); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		s.logger.Error("gallery row delete failed after blob delete", "id", id, "err", err)
		return err
	}
	if !deleted {
		s.logger.Warn("gallery row already gone", "id", id)
	}
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
