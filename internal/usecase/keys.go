package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/semmidev/arxivsync/internal/domain"
)

const (
	DefaultKeyPrefix  = "arxiv-papers"
	pdfExtension      = ".pdf"
	unsafeReplacement = "_"
)

var (
	unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

	publishedLayouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"}
)

// KeyDeriver maps (identifier, published date) to a bucket key of the form
// <prefix>/YYYY/MM/DD/<identifier>.pdf. Dates are taken in UTC.
type KeyDeriver struct {
	Prefix string
}

func NewKeyDeriver(prefix string) KeyDeriver {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return KeyDeriver{Prefix: strings.TrimSuffix(prefix, "/")}
}

func (k KeyDeriver) Derive(identifier, published string) (string, error) {
	date, err := parsePublished(published)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s",
		k.Prefix, date.Year(), int(date.Month()), date.Day(), SanitizeIdentifier(identifier), pdfExtension), nil
}

// SanitizeIdentifier replaces every character outside [A-Za-z0-9.-] with an underscore.
func SanitizeIdentifier(identifier string) string {
	return unsafeKeyChars.ReplaceAllString(identifier, unsafeReplacement)
}

func parsePublished(published string) (time.Time, error) {
	value := strings.TrimSpace(published)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidDate, published)
}
