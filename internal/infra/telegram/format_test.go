package telegram

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"telegram_post_scheduler/internal/domain/dispatch"
	"telegram_post_scheduler/internal/domain/target"
)

func TestFormatItem(t *testing.T) {
	t.Parallel()
	due := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item *dispatch.ScheduledItem
		want []string
	}{
		{
			name: "bound pending",
			item: &dispatch.ScheduledItem{ID: 3, TargetID: sql.NullString{String: "@news", Valid: true}, ContentID: sql.NullInt64{Int64: 5, Valid: true}, DueAt: due, Status: dispatch.StatusPending},
			want: []string{"#3", "2024-03-01 09:00", "@news", "#5", "[pending]"},
		},
		{
			name: "unbound sent",
			item: &dispatch.ScheduledItem{ID: 4, DueAt: due, Status: dispatch.StatusSent, DeliveredTo: sql.NullString{String: "1001", Valid: true}},
			want: []string{"* → 1001", "сообщение *", "[sent]"},
		},
		{
			name: "failed with detail",
			item: &dispatch.ScheduledItem{ID: 5, DueAt: due, Status: dispatch.StatusFailed, ErrorDetail: sql.NullString{String: "no eligible target", Valid: true}},
			want: []string{"[failed]: no eligible target"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatItem(tt.item, time.UTC)
			for _, part := range tt.want {
				if !strings.Contains(got, part) {
					t.Errorf("formatItem = %q, missing %q", got, part)
				}
			}
		})
	}
}

func TestCountServed(t *testing.T) {
	t.Parallel()
	targets := []*target.Target{{ID: "A"}, {ID: "B"}, {ID: "C"}}

	// Deliveries to targets removed since then do not count.
	if got := countServed([]string{"A", "gone", "C"}, targets); got != 2 {
		t.Errorf("countServed = %d, want 2", got)
	}
}

func TestAllowedImportFile(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"targets.csv": true,
		"POSTS.TXT":   true,
		"photo.jpg":   false,
		"csv":         false,
	} {
		if got := allowedImportFile(name); got != want {
			t.Errorf("allowedImportFile(%q) = %v, want %v", name, got, want)
		}
	}
}
