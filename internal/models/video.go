package models

import "errors"

// ErrNotFound is returned by the video store when no record matches the id.
var ErrNotFound = errors.New("video not found")

// Status is the lifecycle state of a video record.
type Status string

const (
	StatusNotUploaded Status = "NOT_UPLOADED"
	StatusUploaded    Status = "UPLOADED"
	StatusProcessing  Status = "PROCESSING"
	StatusReady       Status = "READY"
	StatusError       Status = "ERROR"
)

// Rendition labels used as keys of Video.Files.
const (
	Label720p = "720p"
	Label360p = "360p"
	Label240p = "240p"
)

// Rank orders statuses along the lifecycle. READY and ERROR share the terminal rank.
func (s Status) Rank() int {
	switch s {
	case StatusUploaded:
		return 1
	case StatusProcessing:
		return 2
	case StatusReady, StatusError:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotUploaded, StatusUploaded, StatusProcessing, StatusReady, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further transition is accepted.
func (s Status) Terminal() bool { return s == StatusReady || s == StatusError }

// Advance returns the status after applying next: next if it moves the record forward, s otherwise.
// Terminal states absorb every later transition.
func (s Status) Advance(next Status) Status {
	if next.Rank() > s.Rank() {
		return next
	}
	return s
}

// Files maps a rendition label to its public playback URL.
type Files map[string]string

// Video is the persisted video record.
type Video struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	UploadedTime int64    `json:"uploadedTime"`
	Status       Status   `json:"status"`
	Files        Files    `json:"files"`
}

// Apply merges p into v field by field: scalars are overwritten, Files is merged by key and
// Status only moves forward.
func (v *Video) Apply(p Patch) {
	if p.Status != nil {
		v.Status = v.Status.Advance(*p.Status)
	}
	if p.Title != nil {
		v.Title = *p.Title
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
	if p.Tags != nil {
		v.Tags = append([]string(nil), (*p.Tags)...)
	}
	if len(p.Files) > 0 {
		if v.Files == nil {
			v.Files = make(Files, len(p.Files))
		}
		for label, url := range p.Files {
			v.Files[label] = url
		}
	}
}

// Patch is a sparse set of field changes flushed to the store in one update.
// Nil fields are left untouched.
type Patch struct {
	Status      *Status
	Title       *string
	Description *string
	Tags        *[]string
	Files       Files
}

// SetStatus records a status change on the patch.
func (p *Patch) SetStatus(s Status) *Patch {
	p.Status = &s
	return p
}

// AddFiles merges files into the pending Files change.
func (p *Patch) AddFiles(files Files) *Patch {
	if len(files) == 0 {
		return p
	}
	if p.Files == nil {
		p.Files = make(Files, len(files))
	}
	for label, url := range files {
		p.Files[label] = url
	}
	return p
}

// Empty reports whether the patch carries no change.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Title == nil && p.Description == nil && p.Tags == nil && len(p.Files) == 0
}

// SearchDocument is the projection of a video published to the search index.
type SearchDocument struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// SearchDocument returns the denormalized projection of v.
func (v *Video) SearchDocument() SearchDocument {
	return SearchDocument{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Tags:        v.Tags,
	}
}
