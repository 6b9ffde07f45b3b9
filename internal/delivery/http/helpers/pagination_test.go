package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"eventportal/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query string
		want  domain.PaginationParams
	}{
		{"", domain.PaginationParams{Page: 1, PageSize: 20}},
		{"page=3&page_size=5", domain.PaginationParams{Page: 3, PageSize: 5}},
		{"page=0&page_size=-1", domain.PaginationParams{Page: 1, PageSize: 20}},
		{"page=abc", domain.PaginationParams{Page: 1, PageSize: 20}},
		{"page_size=1000", domain.PaginationParams{Page: 1, PageSize: MaxPageSize}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/events?"+tt.query, nil)
			assert.Equal(t, tt.want, ParsePagination(r))
		})
	}
}

func TestNewPaginationMeta(t *testing.T) {
	assert.Equal(t, PaginationMeta{Page: 1, PageSize: 20, Total: 0, TotalPages: 0}, NewPaginationMeta(1, 20, 0))
	assert.Equal(t, PaginationMeta{Page: 2, PageSize: 20, Total: 41, TotalPages: 3, HasNext: true}, NewPaginationMeta(2, 20, 41))
	assert.False(t, NewPaginationMeta(3, 20, 41).HasNext)
	assert.Equal(t, 0, NewPaginationMeta(1, 0, 10).TotalPages)
}
