package service

import (
	"FlatComments/internal/commentlist"
	"FlatComments/internal/liststore"
	"FlatComments/internal/models"
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memoryStore is an in-memory authoritative store that reports writes to its updater.
type memoryStore struct {
	updater  commentlist.Updater
	comments map[int64]*models.Comment
	nextID   int64
}

func (m *memoryStore) Create(ctx context.Context, c models.Comment) (*models.Comment, error) {
	m.nextID++
	c.ID = m.nextID
	m.comments[c.ID] = &c
	if c.IsPublic {
		if err := m.updater.Created(ctx, commentlist.Event{Ref: c.ID, ContentTypeID: c.ContentTypeID, ObjectPK: c.ObjectPK}); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (m *memoryStore) get(id int64) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) Approve(ctx context.Context, id int64) (*models.Comment, error) {
	c, err := m.get(id)
	if err != nil {
		return nil, err
	}
	c.IsPublic = true
	return c, m.updater.Approved(ctx, commentlist.Event{Ref: id, ContentTypeID: c.ContentTypeID, ObjectPK: c.ObjectPK})
}

func (m *memoryStore) Moderate(ctx context.Context, id int64) (*models.Comment, error) {
	c, err := m.get(id)
	if err != nil {
		return nil, err
	}
	c.IsPublic = false
	return c, m.updater.Moderated(ctx, commentlist.Event{Ref: id, ContentTypeID: c.ContentTypeID, ObjectPK: c.ObjectPK})
}

func (m *memoryStore) Delete(ctx context.Context, id int64) (*models.Comment, error) {
	c, err := m.get(id)
	if err != nil {
		return nil, err
	}
	delete(m.comments, id)
	return c, m.updater.Deleted(ctx, commentlist.Event{Ref: id, ContentTypeID: c.ContentTypeID, ObjectPK: c.ObjectPK})
}

func (m *memoryStore) LiveIDs(_ context.Context, ctID int64, pk string) ([]int64, error) {
	ids := []int64{}
	for id, c := range m.comments {
		if c.IsPublic && c.ContentTypeID == ctID && c.ObjectPK == pk {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryStore) CommentByID(_ context.Context, id int64) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok || !c.IsPublic {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) CommentsByIDs(ctx context.Context, ids []int64) ([]*models.Comment, error) {
	out := []*models.Comment{}
	for _, id := range ids {
		if c, err := m.CommentByID(ctx, id); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

type staticResolver struct{}

var article = &models.ContentType{ID: 3, AppLabel: "articles", Model: "article"}

func (staticResolver) ContentTypeByTag(_ context.Context, tag string) (*models.ContentType, error) {
	if tag == article.Tag() {
		return article, nil
	}
	return nil, models.ErrNotFound
}

func (staticResolver) ContentTypeByID(_ context.Context, id int64) (*models.ContentType, error) {
	if id == article.ID {
		return article, nil
	}
	return nil, models.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *memoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zaptest.NewLogger(t)
	store := &memoryStore{comments: map[int64]*models.Comment{}}
	index := commentlist.NewIndex(liststore.NewStore(rdb, log), staticResolver{}, store, commentlist.Config{Keys: liststore.DefaultKeys(), PageSize: 2}, log)
	store.updater = index
	return NewService(store, store, index, log), store, mr
}

var (
	post1   = commentlist.ByTypeAndKey("articles.article", "1")
	unknown = commentlist.ByTypeAndKey("nope.nope", "1")
)

func postN(t *testing.T, svc *Service, n int) []*models.Comment {
	t.Helper()
	var out []*models.Comment
	for i := 0; i < n; i++ {
		c, err := svc.PostComment(context.Background(), models.CommentRequest{ContentType: "articles.article", ObjectPK: "1", Comment: "hi"})
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestPostAndPage(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	posted := postN(t, svc, 3)

	n, err := svc.CommentCount(ctx, post1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := svc.CommentPage(ctx, post1, false, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Comments, 2)
	assert.Equal(t, posted[2].ID, page.Comments[0].ID)
	assert.Equal(t, posted[1].ID, page.Comments[1].ID)

	page, err = svc.CommentPage(ctx, post1, true, 2)
	require.NoError(t, err)
	require.Len(t, page.Comments, 1)
	assert.Equal(t, posted[2].ID, page.Comments[0].ID)

	last, err := svc.LastComment(ctx, post1)
	require.NoError(t, err)
	assert.Equal(t, posted[2].ID, last.ID)

	first, err := svc.CommentAt(ctx, post1, true, 0)
	require.NoError(t, err)
	assert.Equal(t, posted[0].ID, first.ID)

	_, err = svc.CommentAt(ctx, post1, false, 3)
	assert.ErrorIs(t, err, commentlist.ErrOutOfRange)
}

func TestHiddenCommentsNeedApproval(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	c, err := svc.PostComment(ctx, models.CommentRequest{ContentType: "articles.article", ObjectPK: "1", Comment: "hi", Hidden: true})
	require.NoError(t, err)

	n, err := svc.CommentCount(ctx, post1)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.ApproveComment(ctx, c.ID)
	require.NoError(t, err)
	n, err = svc.CommentCount(ctx, post1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.ModerateComment(ctx, c.ID)
	require.NoError(t, err)
	n, err = svc.CommentCount(ctx, post1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteUnindexes(t *testing.T) {
	ctx := context.Background()
	svc, _, mr := newTestService(t)
	posted := postN(t, svc, 1)

	require.NoError(t, svc.DeleteComment(ctx, posted[0].ID))
	assert.Empty(t, mr.Keys())

	err := svc.DeleteComment(ctx, posted[0].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUnresolvedObjectsReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	n, err := svc.CommentCount(ctx, unknown)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := svc.CommentPage(ctx, unknown, false, 1)
	require.NoError(t, err)
	assert.Empty(t, page.Comments)
	assert.Zero(t, page.Total)

	last, err := svc.LastComment(ctx, unknown)
	require.NoError(t, err)
	assert.Nil(t, last)

	locked, err := svc.LockStatus(ctx, unknown)
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = svc.PostComment(ctx, models.CommentRequest{ContentType: "nope.nope", ObjectPK: "1", Comment: "hi"})
	assert.ErrorIs(t, err, ErrUnknownObject)
	assert.ErrorIs(t, svc.Lock(ctx, unknown, 0), ErrUnknownObject)
}

func TestLockedObjectsRefuseComments(t *testing.T) {
	ctx := context.Background()
	svc, _, mr := newTestService(t)
	postN(t, svc, 1)

	require.NoError(t, svc.Lock(ctx, post1, time.Hour))
	locked, err := svc.LockStatus(ctx, post1)
	require.NoError(t, err)
	assert.True(t, locked)

	_, err = svc.PostComment(ctx, models.CommentRequest{ContentType: "articles.article", ObjectPK: "1", Comment: "hi"})
	assert.ErrorIs(t, err, ErrLocked)

	page, err := svc.CommentPage(ctx, post1, false, 1)
	require.NoError(t, err)
	assert.True(t, page.Locked)
	assert.Len(t, page.Comments, 1)

	mr.FastForward(2 * time.Hour)
	_, err = svc.PostComment(ctx, models.CommentRequest{ContentType: "articles.article", ObjectPK: "1", Comment: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Lock(ctx, post1, 0))
	require.NoError(t, svc.Unlock(ctx, post1))
	locked, err = svc.LockStatus(ctx, post1)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestEmptyCommentRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.PostComment(context.Background(), models.CommentRequest{ContentType: "articles.article", ObjectPK: "1", Comment: "  "})
	assert.ErrorIs(t, err, ErrEmptyComment)
}

func TestReindexRepairsDrift(t *testing.T) {
	ctx := context.Background()
	svc, store, mr := newTestService(t)
	posted := postN(t, svc, 3)

	// simulate a crash between the authoritative write and the index update
	delete(store.comments, posted[1].ID)
	_, err := mr.Lpush("comments:1:3:1", "12345")
	require.NoError(t, err)

	page, err := svc.CommentPage(ctx, post1, false, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Len(t, page.Comments, 1)

	n, err := svc.Reindex(ctx, post1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err = svc.CommentPage(ctx, post1, false, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Comments, 2)
	assert.Equal(t, posted[2].ID, page.Comments[0].ID)
	assert.Equal(t, posted[0].ID, page.Comments[1].ID)
}

func TestStoreOutagePropagates(t *testing.T) {
	ctx := context.Background()
	svc, _, mr := newTestService(t)
	mr.Close()

	_, err := svc.CommentCount(ctx, post1)
	assert.ErrorIs(t, err, liststore.ErrStoreUnavailable)

	_, err = svc.PostComment(ctx, models.CommentRequest{ContentType: "articles.article", ObjectPK: "1", Comment: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, liststore.ErrStoreUnavailable))
}
