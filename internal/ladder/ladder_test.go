package ladder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidshare/backend/internal/models"
)

func labels(rs []Rendition) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Label)
	}
	return out
}

func TestPlanHDSourceGetsBothRenditions(t *testing.T) {
	for _, w := range []int{1280, 1920, 3840} {
		rs := Plan(w, w*9/16)
		assert.Equal(t, []string{models.Label720p, models.Label360p}, labels(rs), "width %d", w)
	}

	rs := Plan(1920, 1080)
	require.Len(t, rs, 2)
	assert.Equal(t, Rendition{Label: models.Label720p, Width: 1280, Height: 780, Bitrate: 500000}, rs[0])
	assert.Equal(t, Rendition{Label: models.Label360p, Width: 640, Height: 360, Bitrate: 100000}, rs[1])
}

func TestPlanSDSourceGetsOnly360p(t *testing.T) {
	for _, w := range []int{640, 854, 1279} {
		assert.Equal(t, []string{models.Label360p}, labels(Plan(w, 480)), "width %d", w)
	}
}

func TestPlanSmallSourceKeepsOwnDimensions(t *testing.T) {
	for _, dims := range [][2]int{{320, 240}, {639, 360}, {176, 144}} {
		rs := Plan(dims[0], dims[1])
		require.Len(t, rs, 1)
		assert.Equal(t, models.Label240p, rs[0].Label)
		assert.Equal(t, dims[0], rs[0].Width)
		assert.Equal(t, dims[1], rs[0].Height)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	assert.Equal(t, Plan(1920, 1080), Plan(1920, 1080))
	assert.Equal(t, "_360p", Plan(700, 400)[0].NameModifier())
}
