package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func validChallenge() Challenge {
	return Challenge{
		ID:            "c1",
		Name:          "Pushups",
		TargetNumber:  1000,
		Year:          2025,
		Color:         "#fff",
		Icon:          "star",
		TimeframeUnit: TimeframeYear,
		CreatedAt:     1000,
		UpdatedAt:     1000,
	}
}

func validEntry() Entry {
	return Entry{
		ID:          "e1",
		ChallengeID: "c1",
		Date:        "2025-01-15",
		Count:       50,
		CreatedAt:   1000,
		UpdatedAt:   1000,
	}
}

func hasField(errs []string, field string) bool {
	for _, e := range errs {
		if strings.Contains(e, ": "+field+":") {
			return true
		}
	}
	return false
}

func messages[T interface{ Error() string }](errs []T) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func TestChallengeValidate(t *testing.T) {
	if errs := validChallenge().Validate(); len(errs) != 0 {
		t.Fatalf("expected valid challenge, got %v", errs)
	}

	tests := []struct {
		name   string
		mutate func(*Challenge)
		field  string
	}{
		{"empty name", func(c *Challenge) { c.Name = "" }, "name"},
		{"long name", func(c *Challenge) { c.Name = strings.Repeat("x", 101) }, "name"},
		{"zero target", func(c *Challenge) { c.TargetNumber = 0 }, "targetNumber"},
		{"year out of range", func(c *Challenge) { c.Year = 1999 }, "year"},
		{"empty color", func(c *Challenge) { c.Color = "" }, "color"},
		{"empty icon", func(c *Challenge) { c.Icon = "" }, "icon"},
		{"bad timeframe", func(c *Challenge) { c.TimeframeUnit = "week" }, "timeframeUnit"},
		{"custom without dates", func(c *Challenge) { c.TimeframeUnit = TimeframeCustom }, "startDate"},
		{"bad start date", func(c *Challenge) { c.StartDate = "2025/01/01" }, "startDate"},
		{"end before start", func(c *Challenge) {
			c.TimeframeUnit = TimeframeCustom
			c.StartDate = "2025-02-01"
			c.EndDate = "2025-01-01"
		}, "endDate"},
		{"updated before created", func(c *Challenge) { c.UpdatedAt = 10 }, "updatedAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validChallenge()
			tt.mutate(&c)
			errs := messages(c.Validate())
			if !hasField(errs, tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, errs)
			}
		})
	}
}

func TestChallengeValidateCustomTimeframe(t *testing.T) {
	c := validChallenge()
	c.TimeframeUnit = TimeframeCustom
	c.StartDate = "2025-01-01"
	c.EndDate = "2025-03-31"
	if errs := c.Validate(); len(errs) != 0 {
		t.Errorf("expected valid custom challenge, got %v", errs)
	}
}

func TestEntryValidate(t *testing.T) {
	if errs := validEntry().Validate(); len(errs) != 0 {
		t.Fatalf("expected valid entry, got %v", errs)
	}

	tests := []struct {
		name   string
		mutate func(*Entry)
		field  string
	}{
		{"zero count", func(e *Entry) { e.Count = 0 }, "count"},
		{"bad date", func(e *Entry) { e.Date = "Jan 15" }, "date"},
		{"missing challenge", func(e *Entry) { e.ChallengeID = "" }, "challengeId"},
		{"sets mismatch", func(e *Entry) { e.Sets = Sets{10, 20} }, "sets"},
		{"unknown feeling", func(e *Entry) { e.Feeling = "ecstatic" }, "feeling"},
		{"long note", func(e *Entry) { e.Note = strings.Repeat("n", 501) }, "note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			errs := messages(e.Validate())
			if !hasField(errs, tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, errs)
			}
		})
	}
}

func TestEntryValidateSetsMatchingCount(t *testing.T) {
	e := validEntry()
	e.Count = 30
	e.Sets = Sets{10, 20}
	e.Feeling = FeelingGreat
	if errs := e.Validate(); len(errs) != 0 {
		t.Errorf("expected valid entry, got %v", errs)
	}
}

func TestSetsUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Sets
		wantErr bool
	}{
		{"integers", `[10,20]`, Sets{10, 20}, false},
		{"legacy reps objects", `[{"reps":10},{"reps":5}]`, Sets{10, 5}, false},
		{"null", `null`, nil, false},
		{"strings", `["10"]`, nil, true},
		{"unknown object key", `[{"count":3}]`, nil, true},
		{"missing reps", `[{}]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Sets
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestFollowedValidate(t *testing.T) {
	f := Followed{ID: "f1", ChallengeID: "c9", FollowedAt: "2025-01-02T03:04:05Z"}
	if errs := f.Validate(); len(errs) != 0 {
		t.Errorf("expected valid follow, got %v", errs)
	}
	f.FollowedAt = "yesterday"
	if errs := f.Validate(); len(errs) == 0 {
		t.Errorf("expected invalid followedAt to be reported")
	}
}

func TestNormalizeLineEndings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"line1\nline2", "line1\nline2"},
		{"line1\r\nline2", "line1\nline2"},
		{"line1\rline2\r\n", "line1\nline2\n"},
	}
	for _, tt := range tests {
		if got := NormalizeLineEndings(tt.input); got != tt.want {
			t.Errorf("NormalizeLineEndings(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	e := validEntry()
	e.Note = "a\r\nb"
	if got := e.Normalized().Note; got != "a\nb" {
		t.Errorf("entry note not normalized: %q", got)
	}
	c := validChallenge()
	c.Name = "Push\r\nups"
	if got := c.Normalized().Name; got != "Push\nups" {
		t.Errorf("challenge name not normalized: %q", got)
	}
}
