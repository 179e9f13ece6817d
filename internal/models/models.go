package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores and resolvers when a record does not exist.
var ErrNotFound = errors.New("not found")

type CommentRequest struct {
	ContentType string `json:"content_type"`
	ObjectPK    string `json:"object_pk"`
	UserID      string `json:"user_id,omitempty"`
	Comment     string `json:"comment"`
	Hidden      bool   `json:"hidden,omitempty"`
}

type Comment struct {
	ID            int64     `json:"id,omitempty"`
	ContentTypeID int64     `json:"content_type_id"`
	ObjectPK      string    `json:"object_pk"`
	UserID        string    `json:"user_id,omitempty"`
	Comm          string    `json:"comm"`
	IsPublic      bool      `json:"is_public"`
	SubmitDate    time.Time `json:"submit_date"`
}

type ContentType struct {
	ID       int64  `json:"id"`
	AppLabel string `json:"app_label"`
	Model    string `json:"model"`
}

// Tag returns the "app_label.model" form used to address content types.
func (ct ContentType) Tag() string {
	return ct.AppLabel + "." + ct.Model
}

// ContentRef points at a content object by tag and primary key.
type ContentRef struct {
	Tag string
	PK  string
}

func (r ContentRef) ContentTypeTag() string { return r.Tag }
func (r ContentRef) ObjectPK() string       { return r.PK }

type CommentPage struct {
	Comments []*Comment `json:"comments"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	Limit    int        `json:"limit"`
	Reversed bool       `json:"reversed"`
	Locked   bool       `json:"locked"`
}
