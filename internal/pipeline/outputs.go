package pipeline

import (
	"strings"

	"github.com/vidshare/backend/internal/ladder"
	"github.com/vidshare/backend/internal/models"
)

// OutputLayout derives object locations and playback URLs from a video id.
type OutputLayout struct {
	IngestBucket string
	StreamBucket string
	// PublicBaseURL prefixes playback URLs. DefaultPublicBaseURL(StreamBucket) when empty.
	PublicBaseURL string
}

// DefaultPublicBaseURL is the virtual-hosted S3 URL of bucket.
func DefaultPublicBaseURL(bucket string) string {
	return "https://" + bucket + ".s3.amazonaws.com"
}

// InputURI is the transcoder input for id.
func (l OutputLayout) InputURI(id string) string {
	return "s3://" + l.IngestBucket + "/" + id
}

// Destination is the transcoder output prefix for id.
func (l OutputLayout) Destination(id string) string {
	return "s3://" + l.StreamBucket + "/" + id
}

// PlaybackURL is the public URL of the rendition label for id.
func (l OutputLayout) PlaybackURL(id, label string) string {
	base := l.PublicBaseURL
	if base == "" {
		base = DefaultPublicBaseURL(l.StreamBucket)
	}
	return strings.TrimRight(base, "/") + "/" + id + "_" + label + ".mp4"
}

// Files maps every rendition of the ladder to its playback URL.
func (l OutputLayout) Files(id string, renditions []ladder.Rendition) models.Files {
	files := make(models.Files, len(renditions))
	for _, r := range renditions {
		files[r.Label] = l.PlaybackURL(id, r.Label)
	}
	return files
}
