package models

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		// Report fields by their wire names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("timeframe", func(fl validator.FieldLevel) bool {
			return TimeframeUnit(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("feeling", func(fl validator.FieldLevel) bool {
			return Feeling(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(constants.DateFormat, s)
}

// FormatDate formats t as a YYYY-MM-DD calendar date in t's location
func FormatDate(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// Millis converts t to milliseconds since epoch
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Validate checks the challenge's field constraints and returns every problem found
func (c Challenge) Validate() errors.ValidationErrors {
	errs := structErrors(c.Label(), c)

	if c.TimeframeUnit == TimeframeCustom {
		if c.StartDate == "" {
			errs = append(errs, errors.NewValidation(c.Label(), "startDate", "is required for a custom timeframe"))
		}
		if c.EndDate == "" {
			errs = append(errs, errors.NewValidation(c.Label(), "endDate", "is required for a custom timeframe"))
		}
	}
	if c.StartDate != "" && c.EndDate != "" {
		start, serr := ParseDate(c.StartDate)
		end, eerr := ParseDate(c.EndDate)
		if serr == nil && eerr == nil && end.Before(start) {
			errs = append(errs, errors.NewValidation(c.Label(), "endDate", "must not be before startDate"))
		}
	}
	errs = append(errs, timestampErrors(c.Label(), c.CreatedAt, c.UpdatedAt)...)
	return errs
}

// Validate checks the entry's field constraints and returns every problem found.
// It does not check that the challenge exists; that depends on the store or payload.
func (e Entry) Validate() errors.ValidationErrors {
	errs := structErrors(e.Label(), e)

	if e.Sets != nil && e.Sets.Sum() != e.Count {
		errs = append(errs, errors.NewValidation(e.Label(), "sets", "sum %d does not equal count %d", e.Sets.Sum(), e.Count))
	}
	for i, n := range e.Sets {
		if n < 0 {
			errs = append(errs, errors.NewValidation(e.Label(), fmt.Sprintf("sets[%d]", i), "must not be negative"))
		}
	}
	errs = append(errs, timestampErrors(e.Label(), e.CreatedAt, e.UpdatedAt)...)
	return errs
}

// Validate checks the follow record's required fields
func (f Followed) Validate() errors.ValidationErrors {
	errs := structErrors(f.Label(), f)
	if f.FollowedAt != "" {
		if _, err := time.Parse(time.RFC3339, f.FollowedAt); err != nil {
			errs = append(errs, errors.NewValidation(f.Label(), "followedAt", "must be an RFC 3339 timestamp"))
		}
	}
	return errs
}

func timestampErrors(record string, createdAt, updatedAt int64) errors.ValidationErrors {
	var errs errors.ValidationErrors
	if createdAt < 0 {
		errs = append(errs, errors.NewValidation(record, "createdAt", "must not be negative"))
	}
	if updatedAt < createdAt {
		errs = append(errs, errors.NewValidation(record, "updatedAt", "must not be before createdAt"))
	}
	return errs
}

func structErrors(record string, s interface{}) errors.ValidationErrors {
	err := fieldValidator().Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ValidationErrors{errors.NewValidation(record, "", "%v", err)}
	}

	errs := make(errors.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, errors.ValidationError{
			Record:  record,
			Field:   fe.Field(),
			Message: describeTag(fe),
		})
	}
	return errs
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "datetime":
		return fmt.Sprintf("%q is not a YYYY-MM-DD date", fe.Value())
	case "timeframe":
		return fmt.Sprintf("%q is not one of year, month, custom", fe.Value())
	case "feeling":
		return fmt.Sprintf("%q is not a recognized feeling", fe.Value())
	}
	return "failed " + fe.Tag() + " check"
}

// NormalizeLineEndings rewrites CRLF and lone CR as LF. Free text is stored
// this way so JSON, CSV and the database all hold the same value.
func NormalizeLineEndings(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}

// Normalized returns the challenge with its free-text fields normalized
func (c Challenge) Normalized() Challenge {
	c.Name = NormalizeLineEndings(c.Name)
	return c
}

// Normalized returns the entry with its free-text fields normalized
func (e Entry) Normalized() Entry {
	e.Note = NormalizeLineEndings(e.Note)
	return e
}
