package archive

import (
	"time"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/storage"
)

// Validate checks the payload's version, its records' field rules and that
// every entry's challenge is in the payload. It reports every problem found.
func Validate(p Payload) errors.ValidationErrors {
	var errs errors.ValidationErrors

	if p.SchemaVersion == "" {
		errs = append(errs, errors.NewValidation("payload", "schemaVersion", "is required"))
	} else if !Supported(p.SchemaVersion) {
		errs = append(errs, errors.NewValidation("payload", "schemaVersion", "%q is not a supported version (this build reads %s)", p.SchemaVersion, SchemaVersion))
	}
	if !p.Source.Valid() {
		errs = append(errs, errors.NewValidation("payload", "source", "%q is not one of web, ios, android", p.Source))
	}
	if p.ExportedAt != "" {
		if _, err := time.Parse(time.RFC3339, p.ExportedAt); err != nil {
			errs = append(errs, errors.NewValidation("payload", "exportedAt", "must be an RFC 3339 timestamp"))
		}
	}

	errs = append(errs, storage.CheckSnapshot(snapshotOf(p), nil)...)

	followed := map[string]bool{}
	for _, f := range p.Followed {
		errs = append(errs, f.Validate()...)
		if followed[f.ID] {
			errs = append(errs, errors.NewValidation(f.Label(), "id", "is duplicated"))
		}
		followed[f.ID] = true
	}
	return errs
}

func snapshotOf(p Payload) storage.Snapshot {
	return storage.Snapshot{Challenges: p.Challenges, Entries: p.Entries}
}
