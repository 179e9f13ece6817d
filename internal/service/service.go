package service

import (
	"FlatComments/internal/commentlist"
	"FlatComments/internal/models"
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"strings"
	"time"
)

var (
	ErrLocked        = errors.New("comments are locked for this object")
	ErrUnknownObject = errors.New("unknown content object")
	ErrEmptyComment  = errors.New("comment is required")
)

// CommentStore is the authoritative write path; it keeps the index up to date itself.
type CommentStore interface {
	Create(ctx context.Context, c models.Comment) (*models.Comment, error)
	Approve(ctx context.Context, id int64) (*models.Comment, error)
	Moderate(ctx context.Context, id int64) (*models.Comment, error)
	Delete(ctx context.Context, id int64) (*models.Comment, error)
}

type LiveSource interface {
	LiveIDs(ctx context.Context, contentTypeID int64, objectPK string) ([]int64, error)
}

type Service struct {
	store CommentStore
	live  LiveSource
	index *commentlist.Index
	log   *zap.Logger
}

func NewService(store CommentStore, live LiveSource, index *commentlist.Index, log *zap.Logger) *Service {
	return &Service{
		store: store,
		live:  live,
		index: index,
		log:   log.Named("service"),
	}
}

// list resolves loc. ok is false when the object does not resolve, which readers treat as "no result".
func (s *Service) list(ctx context.Context, loc commentlist.Locator, reversed bool) (*commentlist.CommentList, bool, error) {
	l, err := s.index.List(ctx, loc, reversed)
	if err != nil {
		if errors.Is(err, commentlist.ErrUnresolved) {
			s.log.Debug("Object does not resolve, returning empty result", zap.Error(err))
			return nil, false, nil
		}
		return nil, false, err
	}
	return l, true, nil
}

func (s *Service) mustList(ctx context.Context, loc commentlist.Locator) (*commentlist.CommentList, error) {
	l, ok, err := s.list(ctx, loc, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownObject
	}
	return l, nil
}

func (s *Service) PostComment(ctx context.Context, cr models.CommentRequest) (*models.Comment, error) {
	if strings.TrimSpace(cr.Comment) == "" {
		return nil, ErrEmptyComment
	}
	l, err := s.mustList(ctx, commentlist.ByObject(models.ContentRef{Tag: cr.ContentType, PK: cr.ObjectPK}))
	if err != nil {
		return nil, err
	}
	locked, err := l.Locked(ctx)
	if err != nil {
		s.log.Error("Failed to check lock status", zap.Error(err))
		return nil, fmt.Errorf("failed to check lock status: %w", err)
	}
	if locked {
		return nil, ErrLocked
	}

	target := l.Target()
	comment, err := s.store.Create(ctx, models.Comment{
		ContentTypeID: target.ContentTypeID,
		ObjectPK:      target.ObjectPK,
		UserID:        cr.UserID,
		Comm:          cr.Comment,
		IsPublic:      !cr.Hidden,
		SubmitDate:    time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("Failed to create comment", zap.Error(err))
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

func (s *Service) ApproveComment(ctx context.Context, id int64) (*models.Comment, error) {
	s.log.Debug("Approving comment", zap.Int64("id", id))
	c, err := s.store.Approve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to approve comment: %w", err)
	}
	return c, nil
}

func (s *Service) ModerateComment(ctx context.Context, id int64) (*models.Comment, error) {
	s.log.Debug("Moderating comment", zap.Int64("id", id))
	c, err := s.store.Moderate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to moderate comment: %w", err)
	}
	return c, nil
}

func (s *Service) DeleteComment(ctx context.Context, id int64) error {
	s.log.Debug("Deleting comment", zap.Int64("id", id))
	if _, err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

func (s *Service) CommentCount(ctx context.Context, loc commentlist.Locator) (int, error) {
	l, ok, err := s.list(ctx, loc, false)
	if err != nil || !ok {
		return 0, err
	}
	return l.Count(ctx)
}

// CommentPage returns one page of comments together with the total and lock status.
func (s *Service) CommentPage(ctx context.Context, loc commentlist.Locator, reversed bool, page int) (*models.CommentPage, error) {
	if page < 1 {
		page = 1
	}
	result := &models.CommentPage{
		Comments: []*models.Comment{},
		Page:     page,
		Limit:    s.index.PageSize(),
		Reversed: reversed,
	}

	l, ok, err := s.list(ctx, loc, reversed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return result, nil
	}

	if result.Total, err = l.Count(ctx); err != nil {
		return nil, err
	}
	if result.Locked, err = l.Locked(ctx); err != nil {
		return nil, err
	}
	if result.Comments, err = l.PageAt(ctx, page); err != nil {
		s.log.Error("Failed to read comment page", zap.Int("page", page), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// CommentAt returns the comment at position i; commentlist.ErrOutOfRange is passed through.
func (s *Service) CommentAt(ctx context.Context, loc commentlist.Locator, reversed bool, i int) (*models.Comment, error) {
	l, ok, err := s.list(ctx, loc, reversed)
	if err != nil || !ok {
		return nil, err
	}
	return l.Item(ctx, i)
}

func (s *Service) LastComment(ctx context.Context, loc commentlist.Locator) (*models.Comment, error) {
	l, ok, err := s.list(ctx, loc, false)
	if err != nil || !ok {
		return nil, err
	}
	return l.LastComment(ctx)
}

func (s *Service) LockStatus(ctx context.Context, loc commentlist.Locator) (bool, error) {
	l, ok, err := s.list(ctx, loc, false)
	if err != nil || !ok {
		return false, err
	}
	return l.Locked(ctx)
}

func (s *Service) Lock(ctx context.Context, loc commentlist.Locator, ttl time.Duration) error {
	l, err := s.mustList(ctx, loc)
	if err != nil {
		return err
	}
	s.log.Info("Locking comments", zap.Int64("content_type_id", l.Target().ContentTypeID), zap.String("object_pk", l.Target().ObjectPK), zap.Duration("ttl", ttl))
	return s.index.Lock(ctx, l.Target(), ttl)
}

func (s *Service) Unlock(ctx context.Context, loc commentlist.Locator) error {
	l, err := s.mustList(ctx, loc)
	if err != nil {
		return err
	}
	s.log.Info("Unlocking comments", zap.Int64("content_type_id", l.Target().ContentTypeID), zap.String("object_pk", l.Target().ObjectPK))
	return s.index.Unlock(ctx, l.Target())
}

// Reindex rebuilds the object's list from the authoritative store and returns its new length.
func (s *Service) Reindex(ctx context.Context, loc commentlist.Locator) (int, error) {
	l, err := s.mustList(ctx, loc)
	if err != nil {
		return 0, err
	}
	target := l.Target()
	ids, err := s.live.LiveIDs(ctx, target.ContentTypeID, target.ObjectPK)
	if err != nil {
		s.log.Error("Failed to list live comments", zap.Error(err))
		return 0, fmt.Errorf("failed to list live comments: %w", err)
	}
	if err := s.index.Rebuild(ctx, target, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}
