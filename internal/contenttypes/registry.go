package contenttypes

import (
	"context"
	"fmt"

	"FlatComments/internal/metrics"
	"FlatComments/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const DefaultCacheSize = 1000

// Source is the authoritative content-type table.
type Source interface {
	ContentTypeByID(ctx context.Context, id int64) (*models.ContentType, error)
	ContentTypeByTag(ctx context.Context, appLabel, model string) (*models.ContentType, error)
}

// Registry resolves content types through an LRU cache. Content types never
// change once created, so entries are never invalidated.
type Registry struct {
	src   Source
	byID  *lru.Cache[int64, *models.ContentType]
	byTag *lru.Cache[string, *models.ContentType]
	log   *zap.Logger
}

func NewRegistry(src Source, size int, log *zap.Logger) (*Registry, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	byID, err := lru.New[int64, *models.ContentType](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create content type cache: %w", err)
	}
	byTag, err := lru.New[string, *models.ContentType](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create content type cache: %w", err)
	}
	return &Registry{src: src, byID: byID, byTag: byTag, log: log.Named("contenttypes")}, nil
}

// SplitTag splits "app_label.model".
func SplitTag(tag string) (appLabel, model string, err error) {
	for i := len(tag) - 1; i >= 0; i-- {
		if tag[i] == '.' {
			appLabel, model = tag[:i], tag[i+1:]
			break
		}
	}
	if appLabel == "" || model == "" {
		return "", "", fmt.Errorf("%w: malformed content type tag %q", models.ErrNotFound, tag)
	}
	return appLabel, model, nil
}

func (r *Registry) ContentTypeByTag(ctx context.Context, tag string) (*models.ContentType, error) {
	if ct, ok := r.byTag.Get(tag); ok {
		metrics.ContentTypeCache.WithLabelValues("hit").Inc()
		return ct, nil
	}
	metrics.ContentTypeCache.WithLabelValues("miss").Inc()

	appLabel, model, err := SplitTag(tag)
	if err != nil {
		return nil, err
	}
	ct, err := r.src.ContentTypeByTag(ctx, appLabel, model)
	if err != nil {
		r.log.Debug("Content type lookup failed", zap.String("tag", tag), zap.Error(err))
		return nil, fmt.Errorf("failed to get content type %q: %w", tag, err)
	}
	r.remember(ct)
	return ct, nil
}

func (r *Registry) ContentTypeByID(ctx context.Context, id int64) (*models.ContentType, error) {
	if ct, ok := r.byID.Get(id); ok {
		metrics.ContentTypeCache.WithLabelValues("hit").Inc()
		return ct, nil
	}
	metrics.ContentTypeCache.WithLabelValues("miss").Inc()

	ct, err := r.src.ContentTypeByID(ctx, id)
	if err != nil {
		r.log.Debug("Content type lookup failed", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get content type %d: %w", id, err)
	}
	r.remember(ct)
	return ct, nil
}

func (r *Registry) remember(ct *models.ContentType) {
	r.byID.Add(ct.ID, ct)
	r.byTag.Add(ct.Tag(), ct)
}
