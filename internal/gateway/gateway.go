// Package gateway talks to the durable multi-device backend that a device
// migrates into.
package gateway

import (
	"context"
	"fmt"

	"github.com/julianstephens/tally/internal/models"
)

// Strategy tells the remote how to treat data it already holds
type Strategy string

const (
	// StrategyReplace discards the account's remote data and adopts the submission
	StrategyReplace Strategy = "replace"
	// StrategySkip keeps remote records; submitted records that collide are dropped
	StrategySkip Strategy = "skip"
)

func (s Strategy) Valid() bool {
	return s == StrategyReplace || s == StrategySkip
}

// ParseStrategy accepts the wire names and the user-facing aliases
// replace-cloud and keep-cloud
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "replace", "replace-cloud":
		return StrategyReplace, nil
	case "skip", "keep-cloud":
		return StrategySkip, nil
	}
	return "", fmt.Errorf("unknown strategy %q (expected replace-cloud or keep-cloud)", s)
}

// Submission is the migration request body
type Submission struct {
	SchemaVersion string             `json:"schemaVersion"`
	Challenges    []models.Challenge `json:"challenges"`
	Entries       []models.Entry     `json:"entries"`
	Strategy      Strategy           `json:"strategy"`
}

// ImportResult is the remote's answer to a submission
type ImportResult struct {
	Success            bool   `json:"success"`
	ChallengesImported int    `json:"challengesImported"`
	EntriesImported    int    `json:"entriesImported"`
	Error              string `json:"error,omitempty"`
}

// CloudState describes what the account already holds remotely
type CloudState struct {
	HasData        bool `json:"hasData"`
	ChallengeCount int  `json:"challengeCount"`
	EntryCount     int  `json:"entryCount"`
}

// Gateway performs the authoritative remote write. Implementations return
// NetworkError when the remote cannot be reached or ctx ends first, and
// RemoteRejectedError when it answers with a failure.
type Gateway interface {
	Probe(ctx context.Context) (CloudState, error)
	Import(ctx context.Context, sub Submission) (ImportResult, error)
}
