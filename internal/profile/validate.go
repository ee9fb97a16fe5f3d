package profile

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// InvalidRecordError reports a draft that cannot enter a feed.
type InvalidRecordError struct {
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid profile: %s %s", e.Field, e.Reason)
}

var textPolicy = bluemonday.StrictPolicy()

// ParseTags splits a comma-separated tag string, trimming each entry and
// dropping empty ones.
func ParseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Normalize trims every field and strips markup from free text.
func Normalize(d Draft) Draft {
	out := Draft{
		Name:        cleanText(d.Name),
		Project:     cleanText(d.Project),
		Description: cleanText(d.Description),
		VideoURL:    strings.TrimSpace(d.VideoURL),
		Tags:        make([]string, 0, len(d.Tags)),
	}
	for _, t := range d.Tags {
		if t = cleanText(t); t != "" {
			out.Tags = append(out.Tags, t)
		}
	}
	return out
}

// cleanText strips markup. The policy escapes entities in its output, and
// records hold plain text, so they are unescaped again.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(strings.TrimSpace(s))))
}

// Validate returns an *InvalidRecordError for the first required field that
// is empty, or for a video reference that is not an absolute URL.
func Validate(d Draft) error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return &InvalidRecordError{Field: "name", Reason: "is required"}
	case strings.TrimSpace(d.Project) == "":
		return &InvalidRecordError{Field: "project", Reason: "is required"}
	case strings.TrimSpace(d.Description) == "":
		return &InvalidRecordError{Field: "description", Reason: "is required"}
	}
	if v := strings.TrimSpace(d.VideoURL); v != "" {
		u, err := url.Parse(v)
		if err != nil || u.Host == "" && u.Scheme != "blob" {
			return &InvalidRecordError{Field: "videoUrl", Reason: "must be an absolute URL"}
		}
		switch u.Scheme {
		case "http", "https", "blob":
		default:
			return &InvalidRecordError{Field: "videoUrl", Reason: "must use http, https or blob"}
		}
	}
	return nil
}

// NewRecord normalizes and validates d and returns the resulting Record.
func NewRecord(d Draft, id string, now time.Time) (Record, error) {
	if id == "" {
		return Record{}, &InvalidRecordError{Field: "id", Reason: "is required"}
	}
	d = Normalize(d)
	if err := Validate(d); err != nil {
		return Record{}, err
	}
	return Record{
		ID:          ID(id),
		Name:        d.Name,
		Project:     d.Project,
		Description: d.Description,
		VideoURL:    d.VideoURL,
		Tags:        d.Tags,
		CreatedAt:   now.UTC(),
	}, nil
}

// CheckRecord validates a record received from elsewhere, e.g. a remote listing.
func CheckRecord(r Record) error {
	if r.ID == "" {
		return &InvalidRecordError{Field: "id", Reason: "is required"}
	}
	return Validate(Draft{Name: r.Name, Project: r.Project, Description: r.Description, VideoURL: r.VideoURL})
}
