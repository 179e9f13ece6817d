package router

import (
	"FlatComments/internal/commentlist"
	"FlatComments/internal/liststore"
	"FlatComments/internal/models"
	"FlatComments/internal/router/handlers"
	"FlatComments/internal/service"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var article = &models.ContentType{ID: 3, AppLabel: "articles", Model: "article"}

type articleResolver struct{}

func (articleResolver) ContentTypeByTag(_ context.Context, tag string) (*models.ContentType, error) {
	if tag == article.Tag() {
		return article, nil
	}
	return nil, models.ErrNotFound
}

func (articleResolver) ContentTypeByID(_ context.Context, id int64) (*models.ContentType, error) {
	if id == article.ID {
		return article, nil
	}
	return nil, models.ErrNotFound
}

// memoryComments stores comments in a map and reports public ones to the index.
type memoryComments struct {
	updater  commentlist.Updater
	comments map[int64]*models.Comment
}

func (m *memoryComments) event(c *models.Comment) commentlist.Event {
	return commentlist.Event{Ref: c.ID, ContentTypeID: c.ContentTypeID, ObjectPK: c.ObjectPK}
}

func (m *memoryComments) Create(ctx context.Context, c models.Comment) (*models.Comment, error) {
	c.ID = int64(len(m.comments) + 1)
	m.comments[c.ID] = &c
	if c.IsPublic {
		return &c, m.updater.Created(ctx, m.event(&c))
	}
	return &c, nil
}

func (m *memoryComments) Approve(ctx context.Context, id int64) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c.IsPublic = true
	return c, m.updater.Approved(ctx, m.event(c))
}

func (m *memoryComments) Moderate(ctx context.Context, id int64) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c.IsPublic = false
	return c, m.updater.Moderated(ctx, m.event(c))
}

func (m *memoryComments) Delete(ctx context.Context, id int64) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	delete(m.comments, id)
	return c, m.updater.Deleted(ctx, m.event(c))
}

func (m *memoryComments) LiveIDs(context.Context, int64, string) ([]int64, error) {
	return nil, nil
}

func (m *memoryComments) CommentByID(_ context.Context, id int64) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok || !c.IsPublic {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (m *memoryComments) CommentsByIDs(ctx context.Context, ids []int64) ([]*models.Comment, error) {
	out := []*models.Comment{}
	for _, id := range ids {
		if c, err := m.CommentByID(ctx, id); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zaptest.NewLogger(t)
	store := &memoryComments{comments: map[int64]*models.Comment{}}
	index := commentlist.NewIndex(liststore.NewStore(rdb, log), articleResolver{}, store, commentlist.Config{Keys: liststore.DefaultKeys(), PageSize: 10}, log)
	store.updater = index
	svc := service.NewService(store, store, index, log)
	return NewRouter("release", handlers.NewCommentHandler(*svc), log).GetEngine()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(t *testing.T, h http.Handler, text string) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/comments", `{"content_type":"articles.article","object_pk":"1","comment":"`+text+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func readPage(t *testing.T, h http.Handler, query string) models.CommentPage {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/comments?"+query, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page models.CommentPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	return page
}

func texts(page models.CommentPage) []string {
	out := make([]string, 0, len(page.Comments))
	for _, c := range page.Comments {
		out = append(out, c.Comm)
	}
	return out
}

func TestCommentAddressing(t *testing.T) {
	h := newTestRouter(t)
	for _, text := range []string{"first", "second", "third"} {
		post(t, h, text)
	}
	newestFirst := []string{"third", "second", "first"}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"object", "object=articles.article:1", newestFirst},
		{"type tag and key", "ct=articles.article&pk=1", newestFirst},
		{"type id and key", "ct=3&pk=1", newestFirst},
		{"reversed", "object=articles.article:1&reversed=true", []string{"first", "second", "third"}},
		{"other object", "object=articles.article:2", []string{}},
		{"object without pk", "object=articles.article", []string{}},
		{"unknown type", "ct=nope.nope&pk=1", []string{}},
		{"unknown type id", "ct=42&pk=1", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := readPage(t, h, tt.query)
			assert.Equal(t, tt.want, texts(page))
			assert.Equal(t, len(tt.want), page.Total)
		})
	}
}

func TestCommentAtReversed(t *testing.T) {
	h := newTestRouter(t)
	post(t, h, "first")
	post(t, h, "second")

	rec := do(t, h, http.MethodGet, "/comments/at/0?ct=3&pk=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"comm":"second"`)

	rec = do(t, h, http.MethodGet, "/comments/at/0?ct=3&pk=1&reversed=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"comm":"first"`)

	rec = do(t, h, http.MethodGet, "/comments/at/2?ct=3&pk=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLockTTL(t *testing.T) {
	h := newTestRouter(t)

	for _, ttl := range []string{"-1s", "soon", "10"} {
		rec := do(t, h, http.MethodPut, "/locks?object=articles.article:1&ttl="+ttl, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "ttl %q", ttl)
	}
	rec := do(t, h, http.MethodGet, "/locks?object=articles.article:1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"locked":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/locks?object=articles.article:1&ttl=1m", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/locks?object=articles.article:1", "")
	assert.JSONEq(t, `{"locked":true}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/comments", `{"content_type":"articles.article","object_pk":"1","comment":"hi"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodDelete, "/locks?object=articles.article:1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	post(t, h, "hi")
}

func TestLockUnknownObject(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPut, "/locks?object=nope.nope:1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
