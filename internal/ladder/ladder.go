// Package ladder decides which renditions a source video is transcoded into.
package ladder

import "github.com/vidshare/backend/internal/models"

const (
	// HDMinWidth is the source width from which a 720p rendition is produced.
	HDMinWidth = 1280
	// SDMinWidth is the source width from which a 360p rendition is produced.
	SDMinWidth = 640

	hdBitrate       = 500000
	sdBitrate       = 100000
	fallbackBitrate = 100000
)

// Rendition is one output of the transcoding job.
type Rendition struct {
	Label   string
	Width   int
	Height  int
	Bitrate int
}

// NameModifier is the suffix appended to the output file name, e.g. "_720p".
func (r Rendition) NameModifier() string { return "_" + r.Label }

// Plan returns the ordered rendition ladder for a source of the given dimensions.
// The 720p and 360p thresholds are independent; sources narrower than SDMinWidth get a single
// 240p rendition at their own size.
func Plan(width, height int) []Rendition {
	var out []Rendition
	if width >= HDMinWidth {
		out = append(out, Rendition{Label: models.Label720p, Width: 1280, Height: 780, Bitrate: hdBitrate})
	}
	if width >= SDMinWidth {
		out = append(out, Rendition{Label: models.Label360p, Width: 640, Height: 360, Bitrate: sdBitrate})
	} else {
		out = append(out, Rendition{Label: models.Label240p, Width: width, Height: height, Bitrate: fallbackBitrate})
	}
	return out
}
