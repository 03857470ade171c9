package community

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinNameLength  = 3
	MaxNameLength  = 120
	MaxTitleLength = 200
	MaxSlugLength  = 80
)

// Validation errors.
var (
	ErrInvalidName       = errors.New("name must be between 3 and 120 characters")
	ErrInvalidTitle      = errors.New("title must be between 3 and 200 characters")
	ErrInvalidSlug       = errors.New("slug must contain only lowercase letters, digits and single hyphens")
	ErrInvalidSocialLink = errors.New("social links must be http or https URLs")
	ErrInvalidTimeRange  = errors.New("event must start before it ends")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidateName checks a community name after trimming.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < MinNameLength || n > MaxNameLength {
		return ErrInvalidName
	}
	return nil
}

// ValidateSlug checks a URL slug.
func ValidateSlug(slug string) error {
	if len(slug) == 0 || len(slug) > MaxSlugLength || !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// ValidateSocialLinks requires every non-empty link to be an absolute http(s) URL.
func ValidateSocialLinks(links SocialLinks) error {
	for network, raw := range links.fields() {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s", ErrInvalidSocialLink, network)
		}
	}
	return nil
}

// Validate checks the user-editable fields of a community.
func (c *Community) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if err := ValidateSlug(c.Slug); err != nil {
		return err
	}
	return ValidateSocialLinks(c.SocialLinks)
}

// Validate checks the user-editable fields of an event.
func (e *Event) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(e.Title))
	if n < MinNameLength || n > MaxTitleLength {
		return ErrInvalidTitle
	}
	if !e.StartsAt.Before(e.EndsAt) {
		return ErrInvalidTimeRange
	}
	return nil
}

var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e", 'ж': "zh",
	'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o",
	'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "h", 'ц': "ts",
	'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu",
	'я': "ya",
}

// Slugify derives a slug from a display name, transliterating Cyrillic.
// The result may be empty when the name has no usable characters.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		var chunk string
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			chunk = string(r)
		default:
			if latin, ok := cyrillicToLatin[r]; ok {
				chunk = latin
			}
		}
		if chunk == "" {
			if _, isSoftSign := cyrillicToLatin[r]; !isSoftSign {
				pendingHyphen = b.Len() > 0
			}
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteString(chunk)
		if b.Len() >= MaxSlugLength {
			break
		}
	}
	return strings.Trim(b.String()[:min(b.Len(), MaxSlugLength)], "-")
}
