// Package model provides the core data types for the eva-memory system.
package model

import "time"

// DefaultDecayDays is the sentinel used when computing expiry for a memory
// that has no explicit decayDays: effectively "never".
const DefaultDecayDays = 36500

// Memory is the central record of the system.
type Memory struct {
	ID         string    `json:"id"`
	Content    string    `json:"content,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Type       string    `json:"type"`
	Importance int       `json:"importance"`
	Confidence float64   `json:"confidence"`
	DecayDays  *int      `json:"decayDays,omitempty"`
	Project    string    `json:"project,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Entities   []string  `json:"entities,omitempty"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
	SessionID  string    `json:"sessionId,omitempty"`

	Source          string `json:"source,omitempty"`
	SourceChannel   string `json:"sourceChannel,omitempty"`
	SourceMessageID string `json:"sourceMessageId,omitempty"`

	Supersedes string `json:"supersedes,omitempty"`

	Forgotten    bool      `json:"forgotten"`
	ForgottenAt  time.Time `json:"forgottenAt,omitempty"`
	DeleteReason string    `json:"deleteReason,omitempty"`
}

// IsExpired reports whether the memory's decay window has elapsed as of
// now. The boundary instant counts as expired: a memory is active only
// while created+decayDays is still in the future.
func (m *Memory) IsExpired(now time.Time) bool {
	days := DefaultDecayDays
	if m.DecayDays != nil {
		days = *m.DecayDays
	}
	return !m.Created.AddDate(0, 0, days).After(now)
}

// IsActive implements the invariant-3 active predicate: not forgotten and
// not expired.
func (m *Memory) IsActive(now time.Time) bool {
	if m.Forgotten {
		return false
	}
	return !m.IsExpired(now)
}

// Validate checks the minimal set of required fields for a freshly
// normalized memory. It does not mutate m.
func (m *Memory) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if m.Content == "" && !m.Forgotten {
		return ErrMissingContent
	}
	return nil
}

// Entity is a lowercased topic string linked from Memory via MENTIONS.
type Entity struct {
	Name string `json:"name"`
}

// Tag is linked from Memory via TAGGED.
type Tag struct {
	Name string `json:"name"`
}

// Project is linked from Memory and Session via BELONGS_TO.
type Project struct {
	Name string `json:"name"`
}

// Session represents a period of assistant activity. Memory links to it via
// RECORDED_IN.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
	Project   string    `json:"project,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// RelKind names the relationship edges in the graph.
type RelKind string

const (
	RelMentions   RelKind = "MENTIONS"
	RelTagged     RelKind = "TAGGED"
	RelBelongsTo  RelKind = "BELONGS_TO"
	RelRecordedIn RelKind = "RECORDED_IN"
	RelSupersedes RelKind = "SUPERSEDES"
)

// SortField is the allowlist of fields page() may sort by.
type SortField string

const (
	SortCreated    SortField = "created"
	SortImportance SortField = "importance"
	SortConfidence SortField = "confidence"
	SortUpdated    SortField = "updated"
)

// ValidSortField reports whether f is in the allowlist, used to defend
// page() against sort-field injection.
func ValidSortField(f string) bool {
	switch SortField(f) {
	case SortCreated, SortImportance, SortConfidence, SortUpdated:
		return true
	}
	return false
}

// SortOrder is ASC or DESC.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// ValidSortOrder reports whether o is ASC or DESC.
func ValidSortOrder(o string) bool {
	return o == string(SortAsc) || o == string(SortDesc)
}
