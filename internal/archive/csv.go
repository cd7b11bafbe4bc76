package archive

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

const (
	rowChallenge = "challenge"
	rowEntry     = "entry"
	rowFollowed  = "followed"
)

// csvColumns is the fixed superset header shared by every row type
var csvColumns = []string{
	"type", "id", "challengeId", "date", "count", "note", "feeling", "sets",
	"name", "targetNumber", "color", "icon", "timeframeUnit", "startDate", "endDate",
	"year", "isPublic", "archived", "createdAt", "followedAt",
}

var csvColumnIndex = func() map[string]int {
	m := make(map[string]int, len(csvColumns))
	for i, col := range csvColumns {
		m[col] = i
	}
	return m
}()

type csvRow []string

func newCSVRow(kind string) csvRow {
	row := make(csvRow, len(csvColumns))
	row[0] = kind
	return row
}

func (r csvRow) set(col, value string) {
	r[csvColumnIndex[col]] = value
}

func encodeCSV(p Payload) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvColumns); err != nil {
		return "", err
	}

	for _, c := range p.Challenges {
		row := newCSVRow(rowChallenge)
		row.set("id", c.ID)
		row.set("name", models.NormalizeLineEndings(c.Name))
		row.set("targetNumber", strconv.Itoa(c.TargetNumber))
		row.set("color", c.Color)
		row.set("icon", c.Icon)
		row.set("timeframeUnit", string(c.TimeframeUnit))
		row.set("startDate", c.StartDate)
		row.set("endDate", c.EndDate)
		row.set("year", strconv.Itoa(c.Year))
		row.set("isPublic", strconv.FormatBool(c.IsPublic))
		row.set("archived", strconv.FormatBool(c.Archived))
		row.set("createdAt", strconv.FormatInt(c.CreatedAt, 10))
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	for _, e := range p.Entries {
		row := newCSVRow(rowEntry)
		row.set("id", e.ID)
		row.set("challengeId", e.ChallengeID)
		row.set("date", e.Date)
		row.set("count", strconv.Itoa(e.Count))
		row.set("note", models.NormalizeLineEndings(e.Note))
		row.set("feeling", string(e.Feeling))
		if e.Sets != nil {
			sets, err := json.Marshal([]int(e.Sets))
			if err != nil {
				return "", err
			}
			row.set("sets", string(sets))
		}
		row.set("createdAt", strconv.FormatInt(e.CreatedAt, 10))
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	for _, f := range p.Followed {
		row := newCSVRow(rowFollowed)
		row.set("id", f.ID)
		row.set("challengeId", f.ChallengeID)
		row.set("followedAt", f.FollowedAt)
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// csvReader resolves cells by header name, falling back to the canonical
// position for columns the header lacks. Short rows read as empty cells.
type csvReader struct {
	index map[string]int
	line  int
	row   []string
	errs  errors.ValidationErrors
}

func (r *csvReader) cell(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return r.row[i]
}

func (r *csvReader) label() string {
	return fmt.Sprintf("row %d", r.line)
}

func (r *csvReader) fail(field, format string, args ...interface{}) {
	r.errs = append(r.errs, errors.NewValidation(r.label(), field, format, args...))
}

func (r *csvReader) intCell(col string) int {
	v := strings.TrimSpace(r.cell(col))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(col, "%q is not an integer", v)
	}
	return n
}

func (r *csvReader) boolCell(col string) bool {
	v := strings.TrimSpace(r.cell(col))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(col, "%q is not true or false", v)
	}
	return b
}

// millis reads epoch milliseconds or an RFC 3339 timestamp
func (r *csvReader) millis(col string, fallback int64) int64 {
	v := strings.TrimSpace(r.cell(col))
	if v == "" {
		return fallback
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		r.fail(col, "%q is neither epoch milliseconds nor an RFC 3339 timestamp", v)
		return 0
	}
	return t.UnixMilli()
}

func (r *csvReader) sets() models.Sets {
	v := strings.TrimSpace(r.cell("sets"))
	if v == "" {
		return nil
	}
	var sets models.Sets
	if err := json.Unmarshal([]byte(v), &sets); err != nil {
		r.fail("sets", "%v", err)
		return nil
	}
	return sets
}

func (c *Codec) decodeCSV(text string) (Payload, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Payload{}, payloadError("CSV has no header row")
	}
	if err != nil {
		return Payload{}, payloadError("is not valid CSV: %v", err)
	}

	r := &csvReader{index: make(map[string]int, len(csvColumns))}
	seen := map[string]bool{}
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if _, ok := csvColumnIndex[col]; !ok {
			r.errs = append(r.errs, errors.NewValidation("header", col, "is not a known column"))
			continue
		}
		r.index[col] = i
		seen[col] = true
	}
	for i, col := range csvColumns {
		if !seen[col] {
			r.index[col] = i
		}
	}

	p := Payload{
		SchemaVersion: SchemaVersion,
		ExportedAt:    c.timestamp(),
		Source:        c.source,
	}
	now := c.millis()

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Payload{}, payloadError("is not valid CSV: %v", err)
		}
		r.row = row
		r.line, _ = reader.FieldPos(0)

		switch kind := strings.TrimSpace(r.cell("type")); kind {
		case rowChallenge:
			created := r.millis("createdAt", now)
			timeframe := r.cell("timeframeUnit")
			if timeframe == "" {
				timeframe = string(models.TimeframeYear)
			}
			p.Challenges = append(p.Challenges, models.Challenge{
				ID:            r.cell("id"),
				Name:          models.NormalizeLineEndings(r.cell("name")),
				TargetNumber:  r.intCell("targetNumber"),
				Year:          r.intCell("year"),
				Color:         r.cell("color"),
				Icon:          r.cell("icon"),
				TimeframeUnit: models.TimeframeUnit(timeframe),
				StartDate:     r.cell("startDate"),
				EndDate:       r.cell("endDate"),
				IsPublic:      r.boolCell("isPublic"),
				Archived:      r.boolCell("archived"),
				CreatedAt:     created,
				UpdatedAt:     created,
			})
		case rowEntry:
			created := r.millis("createdAt", now)
			p.Entries = append(p.Entries, models.Entry{
				ID:          r.cell("id"),
				ChallengeID: r.cell("challengeId"),
				Date:        r.cell("date"),
				Count:       r.intCell("count"),
				Note:        models.NormalizeLineEndings(r.cell("note")),
				Feeling:     models.Feeling(r.cell("feeling")),
				Sets:        r.sets(),
				CreatedAt:   created,
				UpdatedAt:   created,
			})
		case rowFollowed:
			followedAt := r.cell("followedAt")
			if followedAt == "" {
				followedAt = c.timestamp()
			}
			p.Followed = append(p.Followed, models.Followed{
				ID:          r.cell("id"),
				ChallengeID: r.cell("challengeId"),
				FollowedAt:  followedAt,
			})
		default:
			r.fail("type", "%q is not one of challenge, entry, followed", kind)
		}
	}

	if len(r.errs) > 0 {
		return Payload{}, r.errs
	}
	return p, nil
}
