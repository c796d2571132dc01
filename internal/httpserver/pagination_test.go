package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLimitOffsetParams(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{
			name:       "defaults",
			query:      "",
			wantLimit:  DefaultPageSize,
			wantOffset: 0,
		},
		{
			name:       "custom limit and offset",
			query:      "limit=10&offset=20",
			wantLimit:  10,
			wantOffset: 20,
		},
		{
			name:       "limit capped at max",
			query:      "limit=500",
			wantLimit:  MaxPageSize,
			wantOffset: 0,
		},
		{
			name:    "negative limit",
			query:   "limit=-1",
			wantErr: true,
		},
		{
			name:    "non-numeric limit",
			query:   "limit=abc",
			wantErr: true,
		},
		{
			name:    "negative offset",
			query:   "offset=-1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			p, err := ParseLimitOffsetParams(r)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLimitOffsetParams() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if p.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", p.Limit, tt.wantLimit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", p.Offset, tt.wantOffset)
			}
		})
	}
}

func TestNewListPage(t *testing.T) {
	type item struct{ Name string }

	items := []item{{Name: "a"}, {Name: "b"}}
	params := LimitOffsetParams{Limit: 25, Offset: 0}

	page := NewListPage(items, params, 17)

	if len(page.Items) != 2 {
		t.Errorf("Items length = %d, want 2", len(page.Items))
	}
	if page.Total != 17 {
		t.Errorf("Total = %d, want 17", page.Total)
	}
	if page.Limit != 25 || page.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want 25/0", page.Limit, page.Offset)
	}
}
