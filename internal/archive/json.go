package archive

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"

	"github.com/julianstephens/tally/internal/errors"
)

func encodeJSON(p Payload) (string, error) {
	p.normalize()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func decodeJSON(text string) (Payload, error) {
	// Read the version before anything else so a newer payload is reported
	// as such rather than as a pile of unknown fields
	var probe struct {
		SchemaVersion json.RawMessage `json:"schemaVersion"`
	}
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return Payload{}, payloadError("is not a valid JSON object: %v", err)
	}
	if len(probe.SchemaVersion) == 0 || string(probe.SchemaVersion) == "null" {
		return Payload{}, errors.ValidationErrors{errors.NewValidation("payload", "schemaVersion", "is required")}
	}
	var version string
	if err := json.Unmarshal(probe.SchemaVersion, &version); err != nil {
		return Payload{}, unsupportedVersion(string(probe.SchemaVersion))
	}
	if !Supported(version) {
		return Payload{}, unsupportedVersion(version)
	}

	var p Payload
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, payloadError("%s", strings.TrimPrefix(err.Error(), "json: "))
	}
	if dec.More() {
		return Payload{}, payloadError("has trailing data after the JSON document")
	}
	for i := range p.Challenges {
		p.Challenges[i] = p.Challenges[i].Normalized()
	}
	for i := range p.Entries {
		p.Entries[i] = p.Entries[i].Normalized()
	}
	return p, nil
}

func unsupportedVersion(version string) error {
	return errors.ValidationErrors{errors.NewValidation("payload", "schemaVersion", "%q is not a supported version (this build reads %s)", version, SchemaVersion)}
}
