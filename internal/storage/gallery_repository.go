package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/myasnails/salonbook/internal/booking"
	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/libs/db"
)

type GalleryRepository struct {
	pool *db.Pool
}

func NewGalleryRepository(pool *db.Pool) *GalleryRepository {
	return &GalleryRepository{pool: pool}
}

func (r *GalleryRepository) List(ctx context.Context) ([]model.GalleryItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, COALESCE(title, ''), image_path, created_at
		FROM gallery
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GalleryItem
	for rows.Next() {
		var item model.GalleryItem
		if err := rows.Scan(&item.ID, &item.Title, &item.ImagePath, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *GalleryRepository) Get(ctx context.Context, id string) (model.GalleryItem, error) {
	var item model.GalleryItem
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, COALESCE(title, ''), image_path, created_at
		FROM gallery
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Title, &item.ImagePath, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GalleryItem{}, booking.ErrNotFound
	}
	if err != nil {
		return model.GalleryItem{}, err
	}
	return item, nil
}

func (r *GalleryRepository) Insert(ctx context.Context, item model.GalleryItem) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO gallery (id, title, image_path)
		VALUES ($1, $2, $3)
	`, item.ID, item.Title, item.ImagePath)
	return err
}

func (r *GalleryRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM gallery
		WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
