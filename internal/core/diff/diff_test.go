package diff

import (
	"testing"

	"github.com/Ning0612/drivemirror/internal/domain"
)

func TestTimestampComparer_Compare(t *testing.T) {
	comparer := NewTimestampComparer()
	entry := domain.RemoteEntry{Name: "a.csv", ID: "1", ModifiedTime: "2024-01-02T00:00:00.000Z"}

	tests := []struct {
		name       string
		present    bool
		lastSynced string
		want       Result
	}{
		{"missing without metadata", false, "", Missing},
		{"missing with current metadata", false, "2024-01-02T00:00:00.000Z", Missing},
		{"present never synced", true, "", Stale},
		{"present epoch sentinel", true, domain.EpochSentinel, Stale},
		{"present older sync", true, "2024-01-01T00:00:00.000Z", Stale},
		{"present equal", true, "2024-01-02T00:00:00.000Z", UpToDate},
		{"present remote older", true, "2024-01-03T00:00:00.000Z", RemoteOlder},
		{"millisecond precision", true, "2024-01-01T23:59:59.999Z", Stale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := comparer.Compare(entry, tt.present, tt.lastSynced)
			if got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResult_NeedsTransfer(t *testing.T) {
	tests := []struct {
		result Result
		want   bool
	}{
		{UpToDate, false},
		{Missing, true},
		{Stale, true},
		{RemoteOlder, false},
	}

	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			if got := tt.result.NeedsTransfer(); got != tt.want {
				t.Errorf("NeedsTransfer() = %v, want %v", got, tt.want)
			}
		})
	}
}
