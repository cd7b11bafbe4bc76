package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Feeling is the optional self-reported difficulty of an entry
type Feeling string

const (
	FeelingGreat Feeling = "great"
	FeelingGood  Feeling = "good"
	FeelingOkay  Feeling = "okay"
	FeelingTough Feeling = "tough"

	// Older exports used a five-step difficulty scale
	FeelingVeryEasy Feeling = "very-easy"
	FeelingEasy     Feeling = "easy"
	FeelingModerate Feeling = "moderate"
	FeelingHard     Feeling = "hard"
	FeelingVeryHard Feeling = "very-hard"
)

func (f Feeling) Valid() bool {
	switch f {
	case FeelingGreat, FeelingGood, FeelingOkay, FeelingTough,
		FeelingVeryEasy, FeelingEasy, FeelingModerate, FeelingHard, FeelingVeryHard:
		return true
	}
	return false
}

// Sets holds per-set counts in the order they were done
type Sets []int

// Sum returns the total of all sets
func (s Sets) Sum() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

type legacySet struct {
	Reps *int `json:"reps"`
}

// UnmarshalJSON accepts the canonical integer array and the older
// [{"reps": n}] object array. Any other shape is an error.
func (s *Sets) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}

	var counts []int
	if err := json.Unmarshal(trimmed, &counts); err == nil {
		*s = counts
		return nil
	}

	var legacy []legacySet
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&legacy); err != nil {
		return fmt.Errorf("sets must be an array of integers or {\"reps\": n} objects")
	}
	out := make(Sets, len(legacy))
	for i, set := range legacy {
		if set.Reps == nil {
			return fmt.Errorf("sets[%d] is missing reps", i)
		}
		out[i] = *set.Reps
	}
	*s = out
	return nil
}

// Entry is one dated contribution toward a challenge
type Entry struct {
	ID          string  `json:"id" validate:"required"`
	ChallengeID string  `json:"challengeId" validate:"required"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Count       int     `json:"count" validate:"gt=0"`
	Note        string  `json:"note,omitempty" validate:"max=500"`
	Feeling     Feeling `json:"feeling,omitempty" validate:"omitempty,feeling"`
	Sets        Sets    `json:"sets,omitempty"`
	CreatedAt   int64   `json:"createdAt"` // ms since epoch
	UpdatedAt   int64   `json:"updatedAt"` // ms since epoch
}

// Label identifies the entry in validation messages
func (e Entry) Label() string {
	if e.ID == "" {
		return "entry (no id)"
	}
	return "entry " + e.ID
}

// Followed records that the user follows someone else's public challenge.
// Follows only exist server-side; they travel in archives so a backup is complete.
type Followed struct {
	ID          string `json:"id" validate:"required"`
	ChallengeID string `json:"challengeId" validate:"required"`
	FollowedAt  string `json:"followedAt" validate:"required"`
}

func (f Followed) Label() string {
	if f.ID == "" {
		return "followed (no id)"
	}
	return "followed " + f.ID
}
