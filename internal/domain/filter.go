package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DeletionFilter selects stored objects for purging. Every set predicate must hold;
// the zero value matches everything.
type DeletionFilter struct {
	Prefix    string
	OlderThan time.Time
	Pattern   *regexp.Regexp
}

func NewDeletionFilter(prefix string, olderThanDays int, pattern string, now time.Time) (DeletionFilter, error) {
	f := DeletionFilter{Prefix: prefix}

	if olderThanDays < 0 {
		return DeletionFilter{}, fmt.Errorf("%w: older_than_days must not be negative", ErrValidation)
	}
	if olderThanDays > 0 {
		f.OlderThan = now.Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	}

	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return DeletionFilter{}, fmt.Errorf("%w: pattern %q: %v", ErrValidation, pattern, err)
		}
		f.Pattern = re
	}

	return f, nil
}

func (f DeletionFilter) MatchesPrefix(obj StoredObject) bool {
	return strings.HasPrefix(obj.Key, f.Prefix)
}

func (f DeletionFilter) MatchesAge(obj StoredObject) bool {
	return f.OlderThan.IsZero() || obj.LastModified.Before(f.OlderThan)
}

func (f DeletionFilter) MatchesPattern(obj StoredObject) bool {
	return f.Pattern == nil || f.Pattern.MatchString(obj.Key)
}

func (f DeletionFilter) Matches(obj StoredObject) bool {
	return f.MatchesPrefix(obj) && f.MatchesAge(obj) && f.MatchesPattern(obj)
}

func (f DeletionFilter) String() string {
	parts := []string{fmt.Sprintf("prefix=%q", f.Prefix)}
	if !f.OlderThan.IsZero() {
		parts = append(parts, "older_than="+f.OlderThan.UTC().Format(time.RFC3339))
	}
	if f.Pattern != nil {
		parts = append(parts, "pattern="+f.Pattern.String())
	}
	return strings.Join(parts, " ")
}
