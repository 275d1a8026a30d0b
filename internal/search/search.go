// Package search publishes video projections to a keyword search index and queries it.
package search

import (
	"context"

	"github.com/vidshare/backend/internal/models"
)

// DefaultIndex is the index (or Weaviate class, capitalized) holding video documents.
const DefaultIndex = "video"

// DefaultLimit bounds the number of hits returned by Search.
const DefaultLimit = 50

// searchFields are the document fields matched by keyword queries.
var searchFields = []string{"title", "description", "tags"}

// Engine is implemented by the OpenSearch and Weaviate adapters.
type Engine interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, doc models.SearchDocument) error
	Search(ctx context.Context, keyword string) ([]models.SearchDocument, error)
}
