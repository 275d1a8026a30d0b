package prober

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `{
  "creatingLibrary": {"name": "MediaLib", "version": "23.04"},
  "media": {
    "@ref": "https://example.com/abc",
    "track": [
      {"@type": "General", "FileSize": "1048576", "Format": "MPEG-4"},
      {"@type": "Video", "Width": "1920", "Height": "1080", "Format": "AVC"},
      {"@type": "Audio", "Format": "AAC"}
    ]
  }
}`

func TestParseTypedTracks(t *testing.T) {
	meta, err := Parse([]byte(sampleOutput))
	require.NoError(t, err)
	assert.Equal(t, Metadata{Width: 1920, Height: 1080, FileSize: 1048576}, meta)
}

func TestParsePositionalTracks(t *testing.T) {
	raw := `{"media":{"track":[{"FileSize":"42"},{"Width":320,"Height":240}]}}`
	meta, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, Metadata{Width: 320, Height: 240, FileSize: 42}, meta)
}

func TestParseFailures(t *testing.T) {
	cases := map[string]string{
		"not json":       `mediainfo: error`,
		"no media":       `{}`,
		"audio only":     `{"media":{"track":[{"@type":"General","FileSize":"1"}]}}`,
		"missing height": `{"media":{"track":[{"@type":"General","FileSize":"1"},{"@type":"Video","Width":"640"}]}}`,
		"bad width":      `{"media":{"track":[{"@type":"General","FileSize":"1"},{"@type":"Video","Width":"wide","Height":"1"}]}}`,
		"zero width":     `{"media":{"track":[{"@type":"General","FileSize":"1"},{"@type":"Video","Width":"0","Height":"1"}]}}`,
	}
	for name, raw := range cases {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, name)
	}

	_, err := Parse([]byte(`{"media":{"track":[{"@type":"General"}]}}`))
	assert.ErrorIs(t, err, ErrMissingTrack)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	path := filepath.Join(t.TempDir(), "mediainfo")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestProbeRunsBinary(t *testing.T) {
	bin := writeScript(t, `cat <<'EOF'
`+sampleOutput+`
EOF`)
	meta, err := NewMediaInfo(bin, nil).Probe(context.Background(), "https://example.com/abc")
	require.NoError(t, err)
	assert.Equal(t, 1920, meta.Width)
}

func TestProbeNonZeroExit(t *testing.T) {
	bin := writeScript(t, `echo "boom" >&2; exit 3`)
	_, err := NewMediaInfo(bin, nil).Probe(context.Background(), "https://example.com/abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit 3")
}
