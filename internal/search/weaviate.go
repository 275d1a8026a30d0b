package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	wvmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/models"
)

// WeaviateConfig holds connection settings for a Weaviate instance.
type WeaviateConfig struct {
	Scheme string
	Host   string
	APIKey string
	Class  string
}

// Weaviate stores video documents as objects of one class and queries them with BM25.
// Object ids are the video ids, which must be UUIDs.
type Weaviate struct {
	client *weaviate.Client
	class  string
	logger *zap.Logger
}

// NewWeaviate creates the adapter.
func NewWeaviate(cfg WeaviateConfig, logger *zap.Logger) (*Weaviate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	wcfg := weaviate.Config{Scheme: cfg.Scheme, Host: cfg.Host}
	if wcfg.Scheme == "" {
		wcfg.Scheme = "https"
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	c, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	class := cfg.Class
	if class == "" {
		class = ClassName(DefaultIndex)
	}
	return &Weaviate{client: c, class: class, logger: logger}, nil
}

// ClassName turns an index name into a Weaviate class name ("video" -> "Video").
func ClassName(index string) string {
	if index == "" {
		return ""
	}
	return strings.ToUpper(index[:1]) + index[1:]
}

// EnsureIndex creates the class with text properties and no vectorizer if it is missing.
func (w *Weaviate) EnsureIndex(ctx context.Context) error {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(w.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("check class %s: %w", w.class, err)
	}
	if exists {
		return nil
	}
	class := &wvmodels.Class{
		Class:      w.class,
		Vectorizer: "none",
		Properties: []*wvmodels.Property{
			{Name: "videoId", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "description", DataType: []string{"text"}},
			{Name: "tags", DataType: []string{"text[]"}},
		},
	}
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		// a concurrent creator may have won the race
		var clientErr *fault.WeaviateClientError
		if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusUnprocessableEntity {
			return nil
		}
		return fmt.Errorf("create class %s: %w", w.class, err)
	}
	w.logger.Info("search class created", zap.String("class", w.class))
	return nil
}

// Upsert creates or replaces the object for doc.
func (w *Weaviate) Upsert(ctx context.Context, doc models.SearchDocument) error {
	props := map[string]any{
		"videoId":     doc.ID,
		"title":       doc.Title,
		"description": doc.Description,
		"tags":        doc.Tags,
	}
	exists, err := w.client.Data().Checker().WithID(doc.ID).WithClassName(w.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("check object %s: %w", doc.ID, err)
	}
	if exists {
		if err := w.client.Data().Updater().WithID(doc.ID).WithClassName(w.class).WithProperties(props).Do(ctx); err != nil {
			return fmt.Errorf("update object %s: %w", doc.ID, err)
		}
		return nil
	}
	if _, err := w.client.Data().Creator().WithClassName(w.class).WithID(doc.ID).WithProperties(props).Do(ctx); err != nil {
		return fmt.Errorf("create object %s: %w", doc.ID, err)
	}
	return nil
}

// Search runs a BM25 query over title, description and tags.
func (w *Weaviate) Search(ctx context.Context, keyword string) ([]models.SearchDocument, error) {
	gql := w.client.GraphQL()
	res, err := gql.Get().
		WithClassName(w.class).
		WithFields(
			graphql.Field{Name: "videoId"},
			graphql.Field{Name: "title"},
			graphql.Field{Name: "description"},
			graphql.Field{Name: "tags"},
		).
		WithBM25(gql.Bm25ArgBuilder().WithQuery(keyword).WithProperties(searchFields...)).
		WithLimit(DefaultLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("bm25 search: %s", res.Errors[0].Message)
	}
	return decodeGraphQLHits(res.Data, w.class), nil
}

// decodeGraphQLHits extracts documents from a {"Get": {"<Class>": [...]}} payload.
func decodeGraphQLHits(data map[string]wvmodels.JSONObject, class string) []models.SearchDocument {
	hits := []models.SearchDocument{}
	get, _ := data["Get"].(map[string]any)
	objects, _ := get[class].([]any)
	for _, o := range objects {
		obj, ok := o.(map[string]any)
		if !ok {
			continue
		}
		doc := models.SearchDocument{}
		doc.ID, _ = obj["videoId"].(string)
		doc.Title, _ = obj["title"].(string)
		doc.Description, _ = obj["description"].(string)
		if tags, ok := obj["tags"].([]any); ok {
			for _, t := range tags {
				if s, ok := t.(string); ok {
					doc.Tags = append(doc.Tags, s)
				}
			}
		}
		hits = append(hits, doc)
	}
	return hits
}
