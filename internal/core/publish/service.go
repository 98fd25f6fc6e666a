// Package publish uploads the aggregate catalog to Supabase storage.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/antoineross/supabase-go"
	"github.com/go-resty/resty/v2"
	storage_go "github.com/supabase-community/storage-go"

	"oilcatalog/internal/config"
	"oilcatalog/internal/core/pipeline"
	"oilcatalog/internal/logger"
)

var ErrNotConfigured = errors.New("supabase storage not configured")

const (
	prefix   = "catalog"
	signTTL  = 7 * 24 * 60 * 60
	stampFmt = "20060102_150405"
	jsonMime = "application/json"
)

type Service struct {
	baseURL string
	key     string
	bucket  string
	upload  func(objectPath string, r io.Reader) error
	http    *resty.Client
	now     func() time.Time
	log     *logger.Logger
}

var _ pipeline.Publisher = (*Service)(nil)

func New(cfg config.Config) (*Service, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" || cfg.SupabaseBucket == "" {
		return nil, ErrNotConfigured
	}
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("init supabase client: %w", err)
	}
	s := newService(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
	s.upload = func(objectPath string, r io.Reader) error {
		ct := jsonMime
		upsert := true
		_, err := client.Storage.UploadFile(s.bucket, objectPath, r, storage_go.FileOptions{ContentType: &ct, Upsert: &upsert})
		return err
	}
	return s, nil
}

func newService(baseURL, key, bucket string) *Service {
	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		bucket:  bucket,
		http:    resty.New().SetTimeout(15 * time.Second),
		now:     time.Now,
		log:     logger.New("Publish"),
	}
}

// PublishAggregate uploads the file twice: as catalog/all-products.json, which
// is overwritten on every publish, and as a timestamped snapshot under
// catalog/history. It returns a signed URL for the current copy.
func (s *Service) PublishAggregate(ctx context.Context, file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read aggregate: %w", err)
	}
	base := path.Base(strings.ReplaceAll(file, "\\", "/"))
	current := path.Join(prefix, base)
	snapshot := path.Join(prefix, "history", strings.TrimSuffix(base, ".json")+"."+s.now().UTC().Format(stampFmt)+".json")

	for _, obj := range []string{current, snapshot} {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := s.upload(obj, bytes.NewReader(data)); err != nil {
			return "", fmt.Errorf("upload %s: %w", obj, err)
		}
		s.log.LogDebugf("uploaded %s (%d bytes)", obj, len(data))
	}

	signed, err := s.sign(ctx, current)
	if err != nil {
		s.log.LogWarnf("signing %s failed: %v", current, err)
		return current, nil
	}
	s.log.LogInfof("published %s", current)
	return signed, nil
}

// sign posts to the storage sign endpoint with fresh auth headers.
func (s *Service) sign(ctx context.Context, objectPath string) (string, error) {
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	res, err := s.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.key).
		SetHeader("apikey", s.key).
		SetBody(map[string]int{"expiresIn": signTTL}).
		SetResult(&out).
		Post(fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.baseURL, s.bucket, objectPath))
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", fmt.Errorf("sign status %d: %s", res.StatusCode(), res.String())
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("sign response missing signedURL")
	}
	if strings.HasPrefix(out.SignedURL, "http") {
		return out.SignedURL, nil
	}
	return s.baseURL + "/storage/v1" + out.SignedURL, nil
}
