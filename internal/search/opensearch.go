package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"
	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/models"
)

// OpenSearchConfig holds connection settings for an OpenSearch domain.
type OpenSearchConfig struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	// SignAWS enables SigV4 request signing for Amazon OpenSearch Service.
	SignAWS bool
}

// OpenSearch indexes and queries video documents.
type OpenSearch struct {
	client *opensearch.Client
	index  string
	logger *zap.Logger
}

// NewOpenSearch creates the adapter. awsCfg is only used when cfg.SignAWS is set.
func NewOpenSearch(cfg OpenSearchConfig, awsCfg aws.Config, logger *zap.Logger) (*OpenSearch, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	osCfg := opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.SignAWS {
		signer, err := requestsigner.NewSignerWithService(awsCfg, "es")
		if err != nil {
			return nil, fmt.Errorf("create opensearch signer: %w", err)
		}
		osCfg.Signer = signer
	}
	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	index := cfg.Index
	if index == "" {
		index = DefaultIndex
	}
	return &OpenSearch{client: client, index: index, logger: logger}, nil
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "title":       {"type": "text"},
      "description": {"type": "text"},
      "tags":        {"type": "text"}
    }
  }
}`

// EnsureIndex creates the index with text mappings if it does not exist yet.
func (o *OpenSearch) EnsureIndex(ctx context.Context) error {
	res, err := opensearchapi.IndicesExistsRequest{Index: []string{o.index}}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", o.index, err)
	}
	drain(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = opensearchapi.IndicesCreateRequest{
		Index: o.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", o.index, err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", o.index, res.String())
	}
	o.logger.Info("search index created", zap.String("index", o.index))
	return nil
}

// Upsert writes doc under its id, replacing any previous version.
func (o *OpenSearch) Upsert(ctx context.Context, doc models.SearchDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := opensearchapi.IndexRequest{
		Index:      o.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("index document %s: %s", doc.ID, res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.SearchDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match query over title, description and tags.
func (o *OpenSearch) Search(ctx context.Context, keyword string) ([]models.SearchDocument, error) {
	query := map[string]any{
		"size": DefaultLimit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  keyword,
				"fields": searchFields,
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	res, err := opensearchapi.SearchRequest{
		Index: []string{o.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, o.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", o.index, err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", o.index, res.String())
	}
	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]models.SearchDocument, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, h.Source)
	}
	return hits, nil
}

func drain(res *opensearchapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
