// Package gallery manages the salon's photo gallery: image bytes in an
// object store, one row per photo in Postgres.
package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BlobStore is the object storage behind the gallery.
type BlobStore interface {
	Put(ctx context.Context, path, contentType string, data []byte) error
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}

// SupabaseStore talks to a Supabase-storage-compatible object API: bearer
// auth, PUT-style POST per object, public URLs under /object/public.
type SupabaseStore struct {
	baseURL string
	bucket  string
	key     string
	http    *http.Client
}

func NewSupabaseStore(baseURL, bucket, key string) *SupabaseStore {
	return &SupabaseStore{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		bucket:  strings.TrimSpace(bucket),
		key:     strings.TrimSpace(key),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *SupabaseStore) Put(ctx context.Context, path, contentType string, data []byte) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("object store upload: %s", readError(resp))
	}
	return nil
}

func (s *SupabaseStore) Delete(ctx context.Context, path string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("object store delete: %s", readError(resp))
	}
	return nil
}

func (s *SupabaseStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path)
}

func readError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.Status
	}
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Sprintf("%s: %s", resp.Status, apiErr.Message)
	}
	return resp.Status
}
