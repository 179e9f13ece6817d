package commentlist

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"FlatComments/internal/metrics"
	"go.uber.org/zap"
)

// Event identifies a comment and the object it is attached to.
type Event struct {
	Ref           int64
	ContentTypeID int64
	ObjectPK      string
}

func (e Event) Target() Target {
	return Target{ContentTypeID: e.ContentTypeID, ObjectPK: e.ObjectPK}
}

// Updater receives the authoritative store's writes. The store calls it
// synchronously once the write has been committed.
type Updater interface {
	Created(ctx context.Context, ev Event) error
	Approved(ctx context.Context, ev Event) error
	Moderated(ctx context.Context, ev Event) error
	Deleted(ctx context.Context, ev Event) error
}

var _ Updater = (*Index)(nil)

func (ix *Index) Created(ctx context.Context, ev Event) error {
	return ix.push(ctx, "created", ev)
}

func (ix *Index) Approved(ctx context.Context, ev Event) error {
	return ix.push(ctx, "approved", ev)
}

func (ix *Index) Moderated(ctx context.Context, ev Event) error {
	return ix.remove(ctx, "moderated", ev)
}

func (ix *Index) Deleted(ctx context.Context, ev Event) error {
	return ix.remove(ctx, "deleted", ev)
}

func (ix *Index) push(ctx context.Context, event string, ev Event) error {
	key := ix.keys.List(ev.ContentTypeID, ev.ObjectPK)
	if err := ix.store.PushFront(ctx, key, strconv.FormatInt(ev.Ref, 10)); err != nil {
		metrics.IndexMutations.WithLabelValues(event, "error").Inc()
		return fmt.Errorf("failed to index %s comment %d: %w", event, ev.Ref, err)
	}
	metrics.IndexMutations.WithLabelValues(event, "ok").Inc()
	ix.log.Debug("Indexed comment", zap.String("event", event), zap.String("key", key), zap.Int64("ref", ev.Ref))
	return nil
}

// remove strips every occurrence of the reference, so duplicate pushes leave nothing behind.
func (ix *Index) remove(ctx context.Context, event string, ev Event) error {
	key := ix.keys.List(ev.ContentTypeID, ev.ObjectPK)
	removed, err := ix.store.Remove(ctx, key, strconv.FormatInt(ev.Ref, 10))
	if err != nil {
		metrics.IndexMutations.WithLabelValues(event, "error").Inc()
		return fmt.Errorf("failed to unindex %s comment %d: %w", event, ev.Ref, err)
	}
	metrics.IndexMutations.WithLabelValues(event, "ok").Inc()
	if removed > 1 {
		ix.log.Warn("Removed duplicate references", zap.String("key", key), zap.Int64("ref", ev.Ref), zap.Int64("removed", removed))
	} else {
		ix.log.Debug("Unindexed comment", zap.String("event", event), zap.String("key", key), zap.Int64("ref", ev.Ref), zap.Int64("removed", removed))
	}
	return nil
}

// Rebuild replaces the target's list with ids, given oldest first.
func (ix *Index) Rebuild(ctx context.Context, target Target, ids []int64) error {
	key := ix.keys.List(target.ContentTypeID, target.ObjectPK)
	refs := make([]string, len(ids))
	for i, id := range ids {
		refs[i] = strconv.FormatInt(id, 10)
	}
	if err := ix.store.Replace(ctx, key, refs); err != nil {
		return fmt.Errorf("failed to rebuild %s: %w", key, err)
	}
	metrics.Reindexed.Inc()
	ix.log.Info("Rebuilt comment list", zap.String("key", key), zap.Int("count", len(refs)))
	return nil
}

// Lock sets the moderation flag for target. A zero ttl never expires.
func (ix *Index) Lock(ctx context.Context, target Target, ttl time.Duration) error {
	key := ix.keys.Lock(target.ContentTypeID, target.ObjectPK)
	if err := ix.store.SetLock(ctx, key, ttl); err != nil {
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}
	return nil
}

func (ix *Index) Unlock(ctx context.Context, target Target) error {
	key := ix.keys.Lock(target.ContentTypeID, target.ObjectPK)
	if err := ix.store.ClearLock(ctx, key); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", key, err)
	}
	return nil
}
