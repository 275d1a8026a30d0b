// Package prober reads source video dimensions with the mediainfo CLI.
package prober

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrMissingTrack is returned when mediainfo output lacks the general or video track.
var ErrMissingTrack = errors.New("mediainfo: missing track")

// Metadata is the normalized probe result.
type Metadata struct {
	Width    int
	Height   int
	FileSize int64
}

// MediaInfo runs `mediainfo --output=JSON <url>`.
type MediaInfo struct {
	binPath string
	logger  *zap.Logger
}

// NewMediaInfo creates a prober for the mediainfo binary at binPath ("mediainfo" when empty).
func NewMediaInfo(binPath string, logger *zap.Logger) *MediaInfo {
	if binPath == "" {
		binPath = "mediainfo"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaInfo{binPath: binPath, logger: logger}
}

// Probe inspects the media at url. A non-zero exit or unparseable output is an error.
func (m *MediaInfo) Probe(ctx context.Context, url string) (Metadata, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.binPath, "--output=JSON", url) // #nosec G204
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("mediainfo failed (exit %d): %w: %s",
			cmd.ProcessState.ExitCode(), err, truncate(stderr.String(), 300))
	}
	meta, err := Parse(out)
	if err != nil {
		return Metadata{}, err
	}
	m.logger.Debug("probed media", zap.Int("width", meta.Width), zap.Int("height", meta.Height), zap.Int64("file_size", meta.FileSize))
	return meta, nil
}

type mediaInfoOutput struct {
	Media *struct {
		Track []map[string]any `json:"track"`
	} `json:"media"`
}

// Parse extracts dimensions and size from mediainfo JSON output. Tracks are matched by
// "@type"; when types are absent the first track is taken as General and the second as Video.
func Parse(raw []byte) (Metadata, error) {
	var out mediaInfoOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Metadata{}, fmt.Errorf("mediainfo JSON parse failed: %w: %s", err, truncate(string(raw), 300))
	}
	if out.Media == nil || len(out.Media.Track) == 0 {
		return Metadata{}, fmt.Errorf("%w: no tracks", ErrMissingTrack)
	}
	tracks := out.Media.Track

	general := findTrack(tracks, "General")
	video := findTrack(tracks, "Video")
	if general == nil {
		general = tracks[0]
	}
	if video == nil {
		if len(tracks) < 2 {
			return Metadata{}, fmt.Errorf("%w: video", ErrMissingTrack)
		}
		video = tracks[1]
	}

	width, err := intField(video, "Width")
	if err != nil {
		return Metadata{}, err
	}
	height, err := intField(video, "Height")
	if err != nil {
		return Metadata{}, err
	}
	if width <= 0 || height <= 0 {
		return Metadata{}, fmt.Errorf("mediainfo: invalid dimensions %dx%d", width, height)
	}
	size, err := intField(general, "FileSize")
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Width: int(width), Height: int(height), FileSize: size}, nil
}

func findTrack(tracks []map[string]any, kind string) map[string]any {
	for _, t := range tracks {
		if s, _ := t["@type"].(string); s == kind {
			return t
		}
	}
	return nil
}

// intField reads a numeric field that mediainfo may emit either as a string or a number.
func intField(track map[string]any, name string) (int64, error) {
	switch v := track[name].(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("mediainfo: field %s: %w", name, err)
		}
		return n, nil
	case float64:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("%w: field %s", ErrMissingTrack, name)
	default:
		return 0, fmt.Errorf("mediainfo: field %s has type %T", name, v)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
