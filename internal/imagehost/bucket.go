// Package imagehost copies chat-hosted photos into a public S3-compatible bucket.
package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fieldops-io/fieldops/internal/metrics"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

const upstreamName = "imagehost"

// maxImageBytes bounds a single downloaded photo.
const maxImageBytes = 20 << 20

// Host turns a temporary file URL into a durable public URL.
type Host interface {
	Store(ctx context.Context, sourceURL string) (string, error)
}

// Config holds bucket settings.
type Config struct {
	Endpoint      string // host[:port], no scheme
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string // optional CDN base; defaults to https://{bucket}.{endpoint}
	Folder        string
	Timeout       time.Duration
}

// Bucket implements Host on minio.
type Bucket struct {
	client *minio.Client
	http   *resty.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

var _ Host = (*Bucket)(nil)

// New creates a bucket-backed image host.
func New(cfg Config, logger *slog.Logger) (*Bucket, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("imagehost: endpoint and bucket are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("imagehost: init client: %w", err)
	}

	return &Bucket{
		client: cli,
		http:   resty.New().SetTimeout(timeout),
		cfg:    cfg,
		logger: logger.With("component", "imagehost"),
		now:    time.Now,
	}, nil
}

// Store downloads sourceURL and uploads it as a public-read object.
// Failures wrap protocol.ErrUpstreamUnavailable.
func (b *Bucket) Store(ctx context.Context, sourceURL string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(upstreamName).Observe(time.Since(start).Seconds())
	}()

	resp, err := b.http.R().SetContext(ctx).Get(sourceURL)
	if err != nil {
		return "", b.fail(fmt.Errorf("imagehost: download: %w: %v", protocol.ErrUpstreamUnavailable, err))
	}
	if resp.IsError() {
		return "", b.fail(fmt.Errorf("imagehost: download: %w: status %d", protocol.ErrUpstreamUnavailable, resp.StatusCode()))
	}
	data := resp.Body()
	if len(data) == 0 || len(data) > maxImageBytes {
		return "", b.fail(fmt.Errorf("imagehost: download: %w: %d bytes", protocol.ErrUpstreamUnavailable, len(data)))
	}

	contentType := http.DetectContentType(data)
	key := b.objectKey(extensionFor(contentType))

	r := bytes.NewReader(data)
	_, err = b.client.PutObject(ctx, b.cfg.Bucket, key, r, int64(r.Len()), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=31536000",
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return "", b.fail(fmt.Errorf("imagehost: put %s: %w: %v", key, protocol.ErrUpstreamUnavailable, err))
	}

	url := b.publicURL(key)
	b.logger.Info("image stored", "key", key, "bytes", len(data))
	return url, nil
}

func (b *Bucket) fail(err error) error {
	metrics.UpstreamFailuresTotal.WithLabelValues(upstreamName).Inc()
	b.logger.Warn("image upload failed", "error", err)
	return err
}

// objectKey is {folder}/{yyyy-mm-dd}/{uuid}.{ext}.
func (b *Bucket) objectKey(ext string) string {
	day := b.now().UTC().Format("2006-01-02")
	return strings.TrimPrefix(path.Clean(path.Join(b.cfg.Folder, day, uuid.NewString())+"."+ext), "/")
}

func (b *Bucket) publicURL(key string) string {
	if b.cfg.PublicBaseURL != "" {
		return strings.TrimRight(b.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.%s/%s", b.cfg.Bucket, b.cfg.Endpoint, key)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
