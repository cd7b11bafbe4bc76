package archive

import (
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/storage"
)

// ImportMode selects how an import treats records already in the store
type ImportMode int

const (
	// ImportMerge adds the payload's records, rewriting ids the store already uses
	ImportMerge ImportMode = iota
	// ImportReplace clears the store first, in the same transaction
	ImportReplace
)

// ImportResult reports what an import wrote
type ImportResult struct {
	ChallengesImported int                `json:"challengesImported"`
	EntriesImported    int                `json:"entriesImported"`
	FollowedSkipped    int                `json:"followedSkipped"`
	IDMappings         storage.IDMappings `json:"idMappings"`
}

// Import validates the whole payload and writes it in one transaction.
// Nothing is written when any record is invalid. Follows only exist
// server-side, so they are counted as skipped.
func Import(store storage.RecordStore, p Payload, mode ImportMode) (ImportResult, error) {
	if errs := Validate(p); len(errs) > 0 {
		return ImportResult{}, errs
	}

	res, err := store.ImportAll(snapshotOf(p), mode == ImportReplace)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{
		ChallengesImported: res.ChallengesImported,
		EntriesImported:    res.EntriesImported,
		FollowedSkipped:    len(p.Followed),
		IDMappings:         res.IDMappings,
	}
	if result.FollowedSkipped > 0 {
		logger.Info("Skipped followed challenges on local import", "count", result.FollowedSkipped)
	}
	return result, nil
}
