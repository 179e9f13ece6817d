package commentlist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"FlatComments/internal/liststore"
	"FlatComments/internal/metrics"
	"FlatComments/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 10

	// End used as a slice stop reads through to the last element.
	End = math.MaxInt
)

// ErrOutOfRange is returned by Item for positions outside the list.
var ErrOutOfRange = errors.New("comment list index out of range")

type ListStore interface {
	PushFront(ctx context.Context, key, ref string) error
	Remove(ctx context.Context, key, ref string) (int64, error)
	Length(ctx context.Context, key string) (int64, error)
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	SetLock(ctx context.Context, key string, ttl time.Duration) error
	ClearLock(ctx context.Context, key string) error
	Replace(ctx context.Context, key string, refs []string) error
}

// Hydrator loads live comment records. CommentByID reports a missing record with
// models.ErrNotFound; CommentsByIDs keeps request order and omits missing records.
type Hydrator interface {
	CommentByID(ctx context.Context, id int64) (*models.Comment, error)
	CommentsByIDs(ctx context.Context, ids []int64) ([]*models.Comment, error)
}

type Config struct {
	Keys     liststore.Keys
	PageSize int
}

// Index hands out CommentList views and applies mutation events to the list store.
type Index struct {
	store    ListStore
	resolver Resolver
	hydrator Hydrator
	keys     liststore.Keys
	pageSize int
	log      *zap.Logger
}

func NewIndex(store ListStore, resolver Resolver, hydrator Hydrator, cfg Config, log *zap.Logger) *Index {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Index{
		store:    store,
		resolver: resolver,
		hydrator: hydrator,
		keys:     cfg.Keys,
		pageSize: cfg.PageSize,
		log:      log.Named("commentlist"),
	}
}

func (ix *Index) PageSize() int {
	return ix.pageSize
}

// List resolves loc once and returns a view over its comment list.
func (ix *Index) List(ctx context.Context, loc Locator, reversed bool) (*CommentList, error) {
	target, err := Resolve(ctx, ix.resolver, loc)
	if err != nil {
		return nil, err
	}
	return ix.ForTarget(target, reversed), nil
}

func (ix *Index) ForTarget(target Target, reversed bool) *CommentList {
	return &CommentList{
		ix:       ix,
		target:   target,
		listKey:  ix.keys.List(target.ContentTypeID, target.ObjectPK),
		lockKey:  ix.keys.Lock(target.ContentTypeID, target.ObjectPK),
		reversed: reversed,
	}
}

// CommentList is a stateless view over one object's list. Every call re-reads the store.
type CommentList struct {
	ix       *Index
	target   Target
	listKey  string
	lockKey  string
	reversed bool
}

func (l *CommentList) Target() Target { return l.target }
func (l *CommentList) Reversed() bool { return l.reversed }

func (l *CommentList) Count(ctx context.Context) (int, error) {
	n, err := l.ix.store.Length(ctx, l.listKey)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return int(n), nil
}

// Locked reports whether the moderation lock flag is present. It never reads the list.
func (l *CommentList) Locked(ctx context.Context) (bool, error) {
	locked, err := l.ix.store.Exists(ctx, l.lockKey)
	if err != nil {
		return false, fmt.Errorf("failed to read lock status: %w", err)
	}
	return locked, nil
}

// LastComment returns the newest comment regardless of read order,
// or nil when the list is empty or the newest reference no longer hydrates.
func (l *CommentList) LastComment(ctx context.Context) (*models.Comment, error) {
	raw, err := l.ix.store.Range(ctx, l.listKey, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read last comment: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return l.hydrateOne(ctx, "last_comment", raw[0])
}

// Item returns the comment at logical position i. Negative positions count from the end.
func (l *CommentList) Item(ctx context.Context, i int) (*models.Comment, error) {
	pos := int64(i)
	if l.reversed || pos < 0 {
		n, err := l.ix.store.Length(ctx, l.listKey)
		if err != nil {
			return nil, fmt.Errorf("failed to count comments: %w", err)
		}
		if pos < 0 {
			pos += n
		}
		if pos < 0 || pos >= n {
			return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, n)
		}
		if l.reversed {
			pos = n - 1 - pos
		}
	}

	raw, err := l.ix.store.Range(ctx, l.listKey, pos, pos+1)
	if err != nil {
		return nil, fmt.Errorf("failed to read comment %d: %w", i, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return l.hydrateOne(ctx, "item", raw[0])
}

// Slice returns the comments at logical positions [start, stop) with the usual
// sequence slicing rules: negative bounds count from the end and out-of-range bounds clamp.
// References that no longer hydrate are dropped, so the result may be short.
func (l *CommentList) Slice(ctx context.Context, start, stop int) ([]*models.Comment, error) {
	raw, err := l.rawSlice(ctx, int64(start), int64(stop))
	if err != nil {
		return nil, err
	}
	ids := l.parseRefs(raw)
	if len(ids) == 0 {
		return []*models.Comment{}, nil
	}

	comments, err := l.ix.hydrator.CommentsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate comments: %w", err)
	}
	if missing := len(ids) - len(comments); missing > 0 {
		metrics.DriftMisses.WithLabelValues("slice").Add(float64(missing))
		l.ix.log.Debug("Dropped stale references from slice", zap.String("key", l.listKey), zap.Int("missing", missing))
	}
	return comments, nil
}

// Page is the default listing: the first PageSize comments.
func (l *CommentList) Page(ctx context.Context) ([]*models.Comment, error) {
	return l.Slice(ctx, 0, l.ix.pageSize)
}

// PageAt returns the 1-based page of PageSize comments.
func (l *CommentList) PageAt(ctx context.Context, page int) ([]*models.Comment, error) {
	if page < 1 {
		page = 1
	}
	// start+pageSize must stay positive or Slice would count from the end
	if page-1 > (math.MaxInt-l.ix.pageSize)/l.ix.pageSize {
		return []*models.Comment{}, nil
	}
	start := (page - 1) * l.ix.pageSize
	return l.Slice(ctx, start, start+l.ix.pageSize)
}

func (l *CommentList) rawSlice(ctx context.Context, start, stop int64) ([]string, error) {
	if !l.reversed && start >= 0 && stop >= 0 {
		raw, err := l.ix.store.Range(ctx, l.listKey, start, stop)
		if err != nil {
			return nil, fmt.Errorf("failed to read comments: %w", err)
		}
		return raw, nil
	}

	n, err := l.ix.store.Length(ctx, l.listKey)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	start, stop = clampBounds(start, stop, n)
	if start == stop {
		return []string{}, nil
	}
	if !l.reversed {
		raw, err := l.ix.store.Range(ctx, l.listKey, start, stop)
		if err != nil {
			return nil, fmt.Errorf("failed to read comments: %w", err)
		}
		return raw, nil
	}

	raw, err := l.ix.store.Range(ctx, l.listKey, n-stop, n-start)
	if err != nil {
		return nil, fmt.Errorf("failed to read comments: %w", err)
	}
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	return raw, nil
}

// clampBounds normalizes slice bounds against a sequence of length n.
func clampBounds(start, stop, n int64) (int64, int64) {
	clamp := func(v int64) int64 {
		if v < 0 {
			v += n
			if v < 0 {
				return 0
			}
		}
		if v > n {
			return n
		}
		return v
	}
	start, stop = clamp(start), clamp(stop)
	if stop < start {
		stop = start
	}
	return start, stop
}

func (l *CommentList) parseRefs(raw []string) []int64 {
	ids := make([]int64, 0, len(raw))
	for _, ref := range raw {
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			metrics.DriftMisses.WithLabelValues("parse").Inc()
			l.ix.log.Warn("Skipping malformed reference", zap.String("key", l.listKey), zap.String("ref", ref))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (l *CommentList) hydrateOne(ctx context.Context, op, ref string) (*models.Comment, error) {
	ids := l.parseRefs([]string{ref})
	if len(ids) == 0 {
		return nil, nil
	}
	comment, err := l.ix.hydrator.CommentByID(ctx, ids[0])
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.DriftMisses.WithLabelValues(op).Inc()
			l.ix.log.Debug("Reference no longer hydrates", zap.String("key", l.listKey), zap.Int64("ref", ids[0]))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to hydrate comment %d: %w", ids[0], err)
	}
	return comment, nil
}
