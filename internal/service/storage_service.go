package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"challenge_backend/internal/config"
	"challenge_backend/internal/util"
	"challenge_backend/pkg/logger"
	"challenge_backend/pkg/monitoring"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider is one object store backend. Keys are slash separated.
type StorageProvider interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	// KeyFromURL reverses URL; ok is false for URLs this store did not issue.
	KeyFromURL(rawURL string) (string, bool)
}

// PhotoStore is what the domain services need from storage.
type PhotoStore interface {
	UploadImage(ctx context.Context, folder, identifier string, data []byte, spec util.ImageSpec) (string, error)
	DeleteByURL(ctx context.Context, rawURL string) error
}

// LocalStorageProvider writes under LocalPath and serves from /uploads.
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Put(ctx context.Context, key string, data []byte, contentType string) error {
	dst := filepath.Join(p.Config.LocalPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, filepath.FromSlash(key)))
}

func (p *LocalStorageProvider) URL(key string) string {
	return strings.TrimRight(p.Config.PublicURL, "/") + "/uploads/" + key
}

func (p *LocalStorageProvider) KeyFromURL(rawURL string) (string, bool) {
	return keyUnder(rawURL, p.URL(""))
}

// MinioStorageProvider stores objects in one bucket.
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) URL(key string) string {
	base := strings.TrimRight(p.Config.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if p.Config.MinioUseSSL {
			scheme = "https"
		}
		base = scheme + "://" + p.Config.MinioEndpoint
	}
	return base + "/" + p.Config.MinioBucket + "/" + key
}

func (p *MinioStorageProvider) KeyFromURL(rawURL string) (string, bool) {
	return keyUnder(rawURL, p.URL(""))
}

// OSSStorageProvider stores objects in an Aliyun OSS bucket.
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Put(ctx context.Context, key string, data []byte, contentType string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.PutObject(key, bytes.NewReader(data), oss.ContentType(contentType), oss.WithContext(ctx))
}

func (p *OSSStorageProvider) Delete(ctx context.Context, key string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (p *OSSStorageProvider) URL(key string) string {
	if p.Config.PublicURL != "" {
		return strings.TrimRight(p.Config.PublicURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, key)
}

func (p *OSSStorageProvider) KeyFromURL(rawURL string) (string, bool) {
	return keyUnder(rawURL, p.URL(""))
}

// keyUnder strips base from a URL this store issued.
func keyUnder(rawURL, base string) (string, bool) {
	if !strings.HasPrefix(rawURL, base) {
		return "", false
	}
	key, _, _ := strings.Cut(strings.TrimPrefix(rawURL, base), "?")
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// errUnmanagedURL marks URLs that point outside the configured store, such as
// identity provider avatars.
var errUnmanagedURL = errors.New("url is not managed by this store")

// StorageService normalises photos and stores them through a provider.
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case config.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		provider = p
	case config.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		provider = p
	default:
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}
	return &StorageService{Provider: provider}, nil
}

// UploadImage crops and re-encodes data per spec and stores it as
// folder/identifier-<uuid>.jpg.
func (s *StorageService) UploadImage(ctx context.Context, folder, identifier string, data []byte, spec util.ImageSpec) (string, error) {
	processed, err := util.ProcessImage(data, spec)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ".jpg"
	if identifier != "" {
		name = identifier + "-" + name
	}
	key := path.Join(folder, name)

	if err := s.Provider.Put(ctx, key, processed, "image/jpeg"); err != nil {
		monitoring.StorageOperations.WithLabelValues("put", "error").Inc()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	monitoring.StorageOperations.WithLabelValues("put", "ok").Inc()
	return s.Provider.URL(key), nil
}

func (s *StorageService) DeleteByURL(ctx context.Context, rawURL string) error {
	key, ok := s.Provider.KeyFromURL(rawURL)
	if !ok {
		return fmt.Errorf("%w: %q", errUnmanagedURL, rawURL)
	}
	if err := s.Provider.Delete(ctx, key); err != nil {
		monitoring.StorageOperations.WithLabelValues("delete", "error").Inc()
		return err
	}
	monitoring.StorageOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// deletePhotos removes objects best-effort. Failures are logged only.
func deletePhotos(ctx context.Context, store PhotoStore, urls ...string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		err := store.DeleteByURL(ctx, u)
		if err == nil || errors.Is(err, os.ErrNotExist) || errors.Is(err, errUnmanagedURL) {
			continue
		}
		logger.Log.Warn("photo delete failed", zap.String("url", u), zap.Error(err))
	}
}
