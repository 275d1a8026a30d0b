package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wvmodels "github.com/weaviate/weaviate/entities/models"
)

func toJSONObjects(in map[string]any) map[string]wvmodels.JSONObject {
	out := make(map[string]wvmodels.JSONObject, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func TestDecodeGraphQLHits(t *testing.T) {
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"Get":{"Video":[
		{"videoId":"abc","title":"cats","description":"","tags":["pets","funny"]}
	]}}`), &data))

	converted := map[string]any{"Get": data["Get"]}
	hits := decodeGraphQLHits(toJSONObjects(converted), "Video")
	require.Len(t, hits, 1)
	assert.Equal(t, []string{"pets", "funny"}, hits[0].Tags)

	assert.Empty(t, decodeGraphQLHits(nil, "Video"))
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "Video", ClassName("video"))
	assert.Equal(t, "", ClassName(""))
}
