package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is one creator's submission as it appears in a feed.
type Record struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Project     string    `json:"project"`
	Description string    `json:"description"`
	VideoURL    string    `json:"videoUrl,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// HasVideo reports whether the record references playable media.
func (r Record) HasVideo() bool {
	return r.VideoURL != ""
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	cp := r
	if r.Tags != nil {
		cp.Tags = make([]string, len(r.Tags))
		copy(cp.Tags, r.Tags)
	}
	return cp
}

// Draft is the user-supplied part of a Record, before an id is assigned.
type Draft struct {
	Name        string   `json:"name"`
	Project     string   `json:"project"`
	Description string   `json:"description"`
	VideoURL    string   `json:"videoUrl,omitempty"`
	Tags        []string `json:"tags"`
}

// ID is a profile identifier. Listings produced by older backends use
// numeric ids, so both JSON strings and numbers decode into an ID.
// It always encodes as a JSON string.
type ID string

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("profile id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}
