package store

import (
	"strconv"
	"strings"
	"time"
)

// Status is an HTTP-flavored lifecycle code shared by cases and assets.
type Status int

const (
	StatusPending       Status = 0
	StatusInProgress    Status = 100
	StatusDone          Status = 200
	StatusBadPayload    Status = 400
	StatusNoContent     Status = 404
	StatusInternalError Status = 500
)

var statusNames = map[Status]string{
	StatusPending:       "pending",
	StatusInProgress:    "in_progress",
	StatusDone:          "done",
	StatusBadPayload:    "bad_payload",
	StatusNoContent:     "no_content",
	StatusInternalError: "internal_error",
}

// String returns a human-readable name for the code.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return strconv.Itoa(int(s))
}

// Terminal reports whether the code is a failure code that requires operator
// intervention before the record is processed again.
func (s Status) Terminal() bool {
	return s >= 400
}

// ParseStatus converts a name or numeric code into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return 0, false
	}
	for code, name := range statusNames {
		if name == normalized {
			return code, true
		}
	}
	if n, err := strconv.Atoi(normalized); err == nil {
		if _, ok := statusNames[Status(n)]; ok {
			return Status(n), true
		}
	}
	return 0, false
}

// Case is a tracked missing-persons case whose images move through the
// pipeline. ConvertStatus tracks the imaging stage (extract, convert,
// publish); per-image captioning state lives on the assets.
type Case struct {
	ID            int64
	CaseID        string
	Title         string
	URLPath       string
	InfoHTML      string
	ConvertStatus Status
	ImageCount    int
	ErrorMessage  string
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Asset is a single published image belonging to a case.
type Asset struct {
	ID           int64
	CaseID       string
	Filename     string
	SourceURL    string
	BlobURL      string
	AltText      string
	Caption      string
	AIProcessed  Status
	IsPrimary    bool
	SortOrder    int
	Width        int
	Height       int
	FileSize     int64
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Done reports whether the asset has finished the whole pipeline: published
// to blob storage and carrying non-empty localized text.
func (a *Asset) Done() bool {
	return a.AIProcessed == StatusDone && a.AltText != "" && a.Caption != "" && a.BlobURL != ""
}

// Tag is reference metadata attached to cases.
type Tag struct {
	ID   int64
	Name string
}

// Snapshot aggregates pipeline progress across all cases.
type Snapshot struct {
	Total          int
	Pending        int
	Processing     int
	Completed      int
	Failed         int
	AssetsDone     int
	AssetsExpected int
}

// CompletionRatio returns completed/total, or 0 when no cases exist.
func (s Snapshot) CompletionRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}
