package handlers

import (
	"FlatComments/internal/commentlist"
	"FlatComments/internal/models"
	"FlatComments/internal/service"
	"encoding/json"
	"errors"
	"github.com/wb-go/wbf/ginext"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type CommentHandler struct {
	service service.Service
}

func NewCommentHandler(service service.Service) *CommentHandler {
	return &CommentHandler{service: service}
}

// locatorFromQuery reads either ?object=<tag>:<pk> or ?ct=<tag|id>&pk=<pk>.
func locatorFromQuery(c *ginext.Context) commentlist.Locator {
	if obj := c.Query("object"); obj != "" {
		tag, pk, _ := strings.Cut(obj, ":")
		return commentlist.ByObject(models.ContentRef{Tag: tag, PK: pk})
	}
	ct, pk := c.Query("ct"), c.Query("pk")
	if id, err := strconv.ParseInt(ct, 10, 64); err == nil {
		return commentlist.ByTypeIDAndKey(id, pk)
	}
	return commentlist.ByTypeAndKey(ct, pk)
}

func reversedFromQuery(c *ginext.Context) bool {
	reversed, _ := strconv.ParseBool(c.DefaultQuery("reversed", "false"))
	return reversed
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, service.ErrUnknownObject), errors.Is(err, commentlist.ErrOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, service.ErrLocked):
		return http.StatusForbidden
	case errors.Is(err, service.ErrEmptyComment):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func idParam(c *ginext.Context, log *zap.Logger) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		log.Warn("Invalid comment id", zap.String("id", idStr))
		c.JSON(http.StatusBadRequest, ginext.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

func (h *CommentHandler) CreateComment(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	log.Debug("Creating comment")
	commentRequest := &models.CommentRequest{}
	if err := json.NewDecoder(c.Request.Body).Decode(commentRequest); err != nil {
		log.Error("Failed to decode request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ginext.H{"error": "Invalid request body"})
		return
	}

	comment, err := h.service.PostComment(c.Request.Context(), *commentRequest)
	if err != nil {
		log.Warn("Failed to create comment", zap.Error(err))
		c.JSON(statusFor(err), ginext.H{"error": err.Error()})
		return
	}
	log.Debug("Created comment", zap.Int64("id", comment.ID))
	c.JSON(http.StatusCreated, ginext.H{"comment": comment})
}

func (h *CommentHandler) GetComments(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	result, err := h.service.CommentPage(c.Request.Context(), locatorFromQuery(c), reversedFromQuery(c), page)
	if err != nil {
		log.Error("Failed to get comments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ginext.H{"error": "Failed to get comments"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *CommentHandler) GetCommentCount(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	count, err := h.service.CommentCount(c.Request.Context(), locatorFromQuery(c))
	if err != nil {
		log.Error("Failed to count comments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ginext.H{"error": "Failed to count comments"})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"count": count})
}

func (h *CommentHandler) GetLastComment(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	comment, err := h.service.LastComment(c.Request.Context(), locatorFromQuery(c))
	if err != nil {
		log.Error("Failed to get last comment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ginext.H{"error": "Failed to get last comment"})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"comment": comment})
}

func (h *CommentHandler) GetCommentAt(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ginext.H{"error": "Invalid index"})
		return
	}
	comment, err := h.service.CommentAt(c.Request.Context(), locatorFromQuery(c), reversedFromQuery(c), index)
	if err != nil {
		log.Warn("Failed to get comment", zap.Int("index", index), zap.Error(err))
		c.JSON(statusFor(err), ginext.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"comment": comment})
}

func (h *CommentHandler) ApproveComment(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	id, ok := idParam(c, log)
	if !ok {
		return
	}
	comment, err := h.service.ApproveComment(c.Request.Context(), id)
	if err != nil {
		log.Error("Failed to approve comment", zap.Int64("id", id), zap.Error(err))
		c.JSON(statusFor(err), ginext.H{"error": "Failed to approve comment"})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"comment": comment})
}

func (h *CommentHandler) ModerateComment(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	id, ok := idParam(c, log)
	if !ok {
		return
	}
	comment, err := h.service.ModerateComment(c.Request.Context(), id)
	if err != nil {
		log.Error("Failed to moderate comment", zap.Int64("id", id), zap.Error(err))
		c.JSON(statusFor(err), ginext.H{"error": "Failed to moderate comment"})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"comment": comment})
}

func (h *CommentHandler) DeleteComment(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	log.Debug("Deleting comment")
	id, ok := idParam(c, log)
	if !ok {
		return
	}
	if err := h.service.DeleteComment(c.Request.Context(), id); err != nil {
		log.Error("Failed to delete comment", zap.Int64("id", id), zap.Error(err))
		c.JSON(statusFor(err), ginext.H{"error": "Failed to delete comment"})
		return
	}
	log.Debug("Deleted comment")
	c.JSON(http.StatusOK, ginext.H{"id": id})
}

func (h *CommentHandler) GetLockStatus(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	locked, err := h.service.LockStatus(c.Request.Context(), locatorFromQuery(c))
	if err != nil {
		log.Error("Failed to get lock status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ginext.H{"error": "Failed to get lock status"})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"locked": locked})
}

func (h *CommentHandler) Lock(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		var err error
		if ttl, err = time.ParseDuration(raw); err != nil || ttl < 0 {
			c.JSON(http.StatusBadRequest, ginext.H{"error": "Invalid ttl"})
			return
		}
	}
	if err := h.service.Lock(c.Request.Context(), locatorFromQuery(c), ttl); err != nil {
		log.Error("Failed to lock comments", zap.Error(err))
		c.JSON(statusFor(err), ginext.H{"error": "Failed to lock comments"})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"locked": true})
}

func (h *CommentHandler) Unlock(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	if err := h.service.Unlock(c.Request.Context(), locatorFromQuery(c)); err != nil {
		log.Error("Failed to unlock comments", zap.Error(err))
		c.JSON(statusFor(err), ginext.H{"error": "Failed to unlock comments"})
		return
	}
	c.JSON(http.StatusOK, ginext.H{"locked": false})
}

func (h *CommentHandler) Reindex(c *ginext.Context) {
	log := c.MustGet("logger").(*zap.Logger)
	count, err := h.service.Reindex(c.Request.Context(), locatorFromQuery(c))
	if err != nil {
		log.Error("Failed to reindex comments", zap.Error(err))
		c.JSON(statusFor(err), ginext.H{"error": "Failed to reindex comments"})
		return
	}
	log.Info("Reindexed comments", zap.Int("count", count))
	c.JSON(http.StatusOK, ginext.H{"count": count})
}
