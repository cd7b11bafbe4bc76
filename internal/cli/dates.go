package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/julianstephens/tally/internal/models"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseDate accepts YYYY-MM-DD or a natural phrase such as "yesterday" or
// "last friday", resolved against now. An empty input means today.
func ParseDate(input string, now time.Time) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "today") {
		return models.FormatDate(now), nil
	}
	if t, err := models.ParseDate(input); err == nil {
		return models.FormatDate(t), nil
	}

	r, err := dateParser.Parse(input, now)
	if err != nil {
		return "", fmt.Errorf("could not parse date %q: %w", input, err)
	}
	if r == nil {
		return "", fmt.Errorf("could not parse date %q (use YYYY-MM-DD or a phrase like \"yesterday\")", input)
	}
	return models.FormatDate(r.Time), nil
}
