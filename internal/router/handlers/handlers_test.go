package handlers

import (
	"FlatComments/internal/commentlist"
	"FlatComments/internal/liststore"
	"FlatComments/internal/models"
	"FlatComments/internal/service"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("failed to delete comment: %w", models.ErrNotFound), http.StatusNotFound},
		{service.ErrUnknownObject, http.StatusNotFound},
		{fmt.Errorf("%w: 4 of 2", commentlist.ErrOutOfRange), http.StatusNotFound},
		{service.ErrLocked, http.StatusForbidden},
		{service.ErrEmptyComment, http.StatusBadRequest},
		{fmt.Errorf("failed to count: %w", liststore.ErrStoreUnavailable), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
