// Package archive converts a record store to and from the versioned export
// payload used for backups and migration.
package archive

import (
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/models"
)

// SchemaVersion is the payload version this build writes
const SchemaVersion = "1.0.0"

// supportedVersions lists every payload version this build can read
var supportedVersions = map[string]bool{
	SchemaVersion: true,
}

// Supported reports whether payloads tagged with version can be read
func Supported(version string) bool {
	return supportedVersions[version]
}

// Source names the client that produced a payload
type Source string

const (
	SourceWeb     Source = "web"
	SourceIOS     Source = "ios"
	SourceAndroid Source = "android"
)

func (s Source) Valid() bool {
	switch s {
	case SourceWeb, SourceIOS, SourceAndroid:
		return true
	}
	return false
}

// ParseSource validates a source name
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if !src.Valid() {
		return "", fmt.Errorf("unknown source %q (expected web, ios or android)", s)
	}
	return src, nil
}

// Payload is a complete, versioned snapshot of a record store
type Payload struct {
	SchemaVersion string             `json:"schemaVersion"`
	ExportedAt    string             `json:"exportedAt"`
	Source        Source             `json:"source"`
	Challenges    []models.Challenge `json:"challenges"`
	Entries       []models.Entry     `json:"entries"`
	Followed      []models.Followed  `json:"followed,omitempty"`
}

// normalize gives the record lists a canonical empty form
func (p *Payload) normalize() {
	if p.Challenges == nil {
		p.Challenges = []models.Challenge{}
	}
	if p.Entries == nil {
		p.Entries = []models.Entry{}
	}
	if len(p.Followed) == 0 {
		p.Followed = nil
	}
}

// Format is a textual payload encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (expected json or csv)", s)
}

// FormatFromPath guesses the format from a file extension, defaulting to JSON
func FormatFromPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}
