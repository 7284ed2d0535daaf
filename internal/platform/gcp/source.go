package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yungbote/coursegen/internal/learning/fetch"
	"github.com/yungbote/coursegen/internal/platform/apierr"
	"github.com/yungbote/coursegen/internal/platform/logger"
)

// StorageSource reads gs://bucket/key refs for the resource fetcher.
type StorageSource struct {
	log    *logger.Logger
	client *storage.Client
}

func NewStorageSource(ctx context.Context, log *logger.Logger, cfg StorageConfig) (*StorageSource, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := ValidateStorageConfig(cfg); err != nil {
		return nil, err
	}
	var opts []option.ClientOption
	if cfg.IsEmulatorMode() {
		// the storage client reads the emulator endpoint from the environment
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadOnly))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apierr.New(apierr.KindConfig, "gcp.storage", err)
	}
	serviceLog := log.With("service", "StorageSource")
	serviceLog.Info("Object storage source initialized",
		"mode", cfg.Mode,
		"emulator_host", cfg.EmulatorHost,
	)
	return &StorageSource{log: serviceLog, client: client}, nil
}

func (s *StorageSource) Close() error {
	return s.client.Close()
}

// Open reads one object. Missing objects and buckets fail as invalid_resource
// so the fetcher does not retry them.
func (s *StorageSource) Open(ctx context.Context, ref fetch.Ref, maxBytes int64) (fetch.Payload, error) {
	bucket, key, err := ParseObjectURL(ref.URL)
	if err != nil {
		return fetch.Payload{}, err
	}
	start := time.Now()
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return fetch.Payload{}, classifyStorageError(err)
	}
	defer r.Close()

	if maxBytes > 0 && r.Attrs.Size > maxBytes {
		return fetch.Payload{}, apierr.Newf(apierr.KindInvalidResource, "gcp.open", "object is %d bytes, limit %d", r.Attrs.Size, maxBytes)
	}
	data, err := fetch.ReadLimited(r, maxBytes)
	if err != nil {
		return fetch.Payload{}, classifyStorageError(err)
	}
	s.log.Debug("object read",
		"bucket", bucket,
		"bytes", len(data),
		"elapsed", time.Since(start).String(),
	)
	return fetch.Payload{Data: data, Label: r.Attrs.ContentType}, nil
}

// ParseObjectURL splits gs://bucket/key.
func ParseObjectURL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), "gs://")
	if !ok {
		return "", "", apierr.Newf(apierr.KindInvalidResource, "gcp.parse", "not a gs:// url")
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", apierr.Newf(apierr.KindInvalidResource, "gcp.parse", "gs:// url needs bucket and object")
	}
	return bucket, key, nil
}

func classifyStorageError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return apierr.New(apierr.KindInvalidResource, "gcp.open", err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound, http.StatusForbidden, http.StatusUnauthorized:
			return &apierr.Error{Kind: apierr.KindInvalidResource, Op: "gcp.open", Status: gerr.Code, Err: err}
		default:
			return &apierr.Error{Kind: apierr.KindForStatus(gerr.Code), Op: "gcp.open", Status: gerr.Code, Err: err}
		}
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apierr.Classify("gcp.open", fmt.Errorf("read object: %w", err))
}
