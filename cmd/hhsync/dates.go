package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/hhsurvey/hhsync/internal/survey/schema"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDateFlag accepts YYYY-MM-DD or a phrase such as "yesterday" or
// "last monday" and returns the stored date form. Empty stays empty.
func parseDateFlag(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if t, err := schema.ParseDate(s); err == nil {
		return schema.FormatDate(t), nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("unrecognized date %q (use YYYY-MM-DD)", s)
	}
	return schema.FormatDate(r.Time), nil
}
