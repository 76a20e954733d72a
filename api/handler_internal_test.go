package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPage(t *testing.T) {
	tests := []struct {
		query         string
		offset, limit int
	}{
		{"", 0, 50},
		{"offset=10&limit=5", 10, 5},
		{"offset=-1&limit=abc", 0, 50},
		{"limit=100000", 0, maxPageSize},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/events?"+tt.query, nil)
		offset, limit := page(r)
		if offset != tt.offset || limit != tt.limit {
			t.Errorf("page(%q) = %d, %d; want %d, %d", tt.query, offset, limit, tt.offset, tt.limit)
		}
	}
}
