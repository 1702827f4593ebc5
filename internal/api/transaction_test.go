package api

import (
	"fmt"
	"testing"

	"chainshop/internal/referral"
)

func feedOf(n int) []referral.Commission {
	feed := make([]referral.Commission, n)
	for i := range feed {
		feed[i] = referral.Commission{Id: fmt.Sprintf("%d", i+1)}
	}
	return feed
}

func TestPaginateCommissions(t *testing.T) {
	tests := []struct {
		name         string
		feedLen      int
		page         int
		size         int
		wantCount    int
		wantFirst    string
		wantLast     string
		wantNext     string
		wantPrevious string
	}{
		{
			name:      "first page full",
			feedLen:   45,
			page:      1,
			size:      20,
			wantCount: 45,
			wantFirst: "1",
			wantLast:  "20",
			wantNext:  "/users/commissions/?page=2&size=20",
		},
		{
			name:         "middle page",
			feedLen:      45,
			page:         2,
			size:         20,
			wantCount:    45,
			wantFirst:    "21",
			wantLast:     "40",
			wantNext:     "/users/commissions/?page=3&size=20",
			wantPrevious: "/users/commissions/?page=1&size=20",
		},
		{
			name:         "last partial page",
			feedLen:      45,
			page:         3,
			size:         20,
			wantCount:    45,
			wantFirst:    "41",
			wantLast:     "45",
			wantPrevious: "/users/commissions/?page=2&size=20",
		},
		{
			name:      "single short page",
			feedLen:   3,
			page:      1,
			size:      20,
			wantCount: 3,
			wantFirst: "1",
			wantLast:  "3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paginateCommissions(feedOf(tt.feedLen), tt.page, tt.size)
			if got.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", got.Count, tt.wantCount)
			}
			if len(got.Results) == 0 {
				t.Fatalf("results empty")
			}
			if got.Results[0].Id != tt.wantFirst || got.Results[len(got.Results)-1].Id != tt.wantLast {
				t.Errorf("results span %s..%s, want %s..%s",
					got.Results[0].Id, got.Results[len(got.Results)-1].Id, tt.wantFirst, tt.wantLast)
			}
			if got.Next != tt.wantNext {
				t.Errorf("next = %q, want %q", got.Next, tt.wantNext)
			}
			if got.Previous != tt.wantPrevious {
				t.Errorf("previous = %q, want %q", got.Previous, tt.wantPrevious)
			}
		})
	}
}

func TestPaginateCommissionsPastEnd(t *testing.T) {
	got := paginateCommissions(feedOf(10), 5, 20)
	if got.Count != 0 {
		t.Errorf("count = %d, want 0", got.Count)
	}
	if got.Results == nil || len(got.Results) != 0 {
		t.Errorf("results = %v, want empty non-nil slice", got.Results)
	}
	if got.Next != "" {
		t.Errorf("next = %q, want empty", got.Next)
	}
}

func TestPaginateCommissionsEmptyFeed(t *testing.T) {
	got := paginateCommissions(nil, 1, 20)
	if got.Count != 0 || len(got.Results) != 0 || got.Results == nil {
		t.Errorf("paginated = %+v", got)
	}
}
