package archive

import (
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/storage"
)

// Codec exports a record store and encodes payloads as JSON or CSV
type Codec struct {
	source Source
	now    func() time.Time
}

type Option func(*Codec)

// WithClock sets the time source for exportedAt and CSV defaults
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(source Source, opts ...Option) *Codec {
	c := &Codec{source: source, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExportAll snapshots the store into a payload. It only reads the store.
func (c *Codec) ExportAll(store storage.RecordStore) (Payload, error) {
	snap, err := store.Snapshot()
	if err != nil {
		return Payload{}, err
	}
	p := Payload{
		SchemaVersion: SchemaVersion,
		ExportedAt:    c.timestamp(),
		Source:        c.source,
		Challenges:    snap.Challenges,
		Entries:       snap.Entries,
	}
	p.normalize()
	return p, nil
}

// ToText encodes the payload in the given format
func (c *Codec) ToText(p Payload, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return encodeJSON(p)
	case FormatCSV:
		return encodeCSV(p)
	}
	return "", fmt.Errorf("unknown format %q", format)
}

// FromText decodes a payload. Structural problems are reported as
// validation errors; field rules are checked separately by Validate.
func (c *Codec) FromText(text string, format Format) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch format {
	case FormatJSON:
		p, err = decodeJSON(text)
	case FormatCSV:
		p, err = c.decodeCSV(text)
	default:
		return Payload{}, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return Payload{}, err
	}
	p.normalize()
	return p, nil
}

func (c *Codec) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

func (c *Codec) millis() int64 {
	return c.now().UnixMilli()
}

func payloadError(format string, args ...interface{}) error {
	return errors.ValidationErrors{errors.NewValidation("payload", "", format, args...)}
}
