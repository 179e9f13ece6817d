package repository

import (
	"FlatComments/internal/commentlist"
	"FlatComments/internal/models"
	"context"
	"fmt"
	"go.uber.org/zap"
	"time"
)

// CommentStore is the authoritative write path. Every committed write is
// reported to the injected updater before the call returns.
type CommentStore struct {
	repo    *Repository
	updater commentlist.Updater
	log     *zap.Logger
}

func NewCommentStore(repo *Repository, updater commentlist.Updater, log *zap.Logger) *CommentStore {
	return &CommentStore{
		repo:    repo,
		updater: updater,
		log:     log.Named("store"),
	}
}

func event(c *models.Comment) commentlist.Event {
	return commentlist.Event{Ref: c.ID, ContentTypeID: c.ContentTypeID, ObjectPK: c.ObjectPK}
}

// Create stores a comment; public comments are indexed straight away.
func (s *CommentStore) Create(ctx context.Context, c models.Comment) (*models.Comment, error) {
	if c.SubmitDate.IsZero() {
		c.SubmitDate = time.Now().UTC()
	}
	if err := s.repo.insertComment(ctx, &c); err != nil {
		return nil, err
	}
	if !c.IsPublic {
		s.log.Debug("Stored hidden comment", zap.Int64("id", c.ID))
		return &c, nil
	}
	if err := s.updater.Created(ctx, event(&c)); err != nil {
		s.log.Error("Comment stored but not indexed", zap.Int64("id", c.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to index comment %d: %w", c.ID, err)
	}
	return &c, nil
}

// Approve makes a hidden comment public. Approving a public comment does nothing.
func (s *CommentStore) Approve(ctx context.Context, id int64) (*models.Comment, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsPublic {
		return c, nil
	}
	if err := s.repo.setPublic(ctx, id, true); err != nil {
		return nil, err
	}
	c.IsPublic = true
	if err := s.updater.Approved(ctx, event(c)); err != nil {
		s.log.Error("Comment approved but not indexed", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to index comment %d: %w", id, err)
	}
	return c, nil
}

// Moderate hides a comment. The index is always updated so stale entries get cleaned up.
func (s *CommentStore) Moderate(ctx context.Context, id int64) (*models.Comment, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsPublic {
		if err := s.repo.setPublic(ctx, id, false); err != nil {
			return nil, err
		}
		c.IsPublic = false
	}
	if err := s.updater.Moderated(ctx, event(c)); err != nil {
		s.log.Error("Comment moderated but not unindexed", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to unindex comment %d: %w", id, err)
	}
	return c, nil
}

func (s *CommentStore) Delete(ctx context.Context, id int64) (*models.Comment, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.deleteComment(ctx, id); err != nil {
		return nil, err
	}
	if err := s.updater.Deleted(ctx, event(c)); err != nil {
		s.log.Error("Comment deleted but not unindexed", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to unindex comment %d: %w", id, err)
	}
	return c, nil
}
