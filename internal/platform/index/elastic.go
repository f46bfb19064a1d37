package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog"
)

// appendScript walks params.path inside _source, creating missing objects,
// and adds params.items to the array at the last segment.
const appendScript = `def o = ctx._source;
for (int i = 0; i < params.path.size() - 1; i++) {
  def k = params.path[i];
  if (o[k] == null) { o[k] = new HashMap(); }
  o = o[k];
}
def leaf = params.path[params.path.size() - 1];
if (o[leaf] == null) { o[leaf] = new ArrayList(); }
o[leaf].addAll(params.items);`

// ElasticStore maps each collection to an index of the same name. Document
// ids are "<type>:<id>" since ES 8 indices are typeless.
type ElasticStore struct {
	es     *elasticsearch.Client
	logger zerolog.Logger
}

func NewElasticStore(address string, transport http.RoundTripper, logger zerolog.Logger) (*ElasticStore, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{address},
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ElasticStore{es: es, logger: logger}, nil
}

func docID(docType, id string) string {
	return docType + ":" + id
}

// pathID is docID escaped for use as a URL path segment; esapi writes
// document ids into the path verbatim.
func pathID(docType, id string) string {
	return url.PathEscape(docID(docType, id))
}

// responseError turns an error response into a Go error, keeping ES's reason.
func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%s: elasticsearch returned %d: %s", op, res.StatusCode, strings.TrimSpace(string(body)))
}

func (s *ElasticStore) EnsureCollections(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := validateCollection(name); err != nil {
			return err
		}

		res, err := s.es.Indices.Exists([]string{name}, s.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("check index %s: %w", name, err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}
		if res.StatusCode != http.StatusNotFound {
			return fmt.Errorf("check index %s: elasticsearch returned %d", name, res.StatusCode)
		}

		res, err = s.es.Indices.Create(name, s.es.Indices.Create.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
		if res.IsError() {
			err := responseError("create index "+name, res)
			res.Body.Close()
			return err
		}
		res.Body.Close()
		s.logger.Info().Str("index", name).Msg("created index")
	}
	return nil
}

func (s *ElasticStore) Get(ctx context.Context, collection, docType, id string) (json.RawMessage, bool) {
	res, err := s.es.Get(collection, pathID(docType, id), s.es.Get.WithContext(ctx))
	if err != nil {
		s.logger.Debug().Err(err).Str("index", collection).Str("id", docID(docType, id)).Msg("get document")
		return nil, false
	}
	defer res.Body.Close()
	if res.IsError() {
		if res.StatusCode != http.StatusNotFound {
			s.logger.Debug().Int("status", res.StatusCode).Str("index", collection).Msg("get document")
		}
		return nil, false
	}

	var envelope struct {
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		s.logger.Debug().Err(err).Str("index", collection).Msg("decode document")
		return nil, false
	}
	if !envelope.Found {
		return nil, false
	}
	return envelope.Source, true
}

func (s *ElasticStore) Upsert(ctx context.Context, collection, docType, id string, doc any) error {
	body, err := json.Marshal(map[string]any{"doc": doc, "doc_as_upsert": true})
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	res, err := s.es.Update(collection, pathID(docType, id), bytes.NewReader(body), s.es.Update.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, docID(docType, id), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("upsert "+collection+"/"+docID(docType, id), res)
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (s *ElasticStore) BulkUpsert(ctx context.Context, collection string, items []BulkItem) error {
	if len(items) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		action := map[string]any{"update": map[string]any{"_index": collection, "_id": docID(item.Type, item.ID)}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(map[string]any{"doc": item.Doc, "doc_as_upsert": true}); err != nil {
			return fmt.Errorf("encode bulk item %s: %w", docID(item.Type, item.ID), err)
		}
	}

	res, err := s.es.Bulk(&buf, s.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk upsert into %s: %w", collection, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("bulk upsert into "+collection, res)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}

	var failed []string
	for _, item := range br.Items {
		for _, result := range item {
			if result.Error != nil {
				failed = append(failed, fmt.Sprintf("%s: %s: %s", result.ID, result.Error.Type, result.Error.Reason))
			}
		}
	}
	return fmt.Errorf("bulk upsert into %s: %d of %d items failed: %s",
		collection, len(failed), len(items), strings.Join(failed, "; "))
}

func (s *ElasticStore) AppendToArray(ctx context.Context, collection, docType, id, fieldPath string, items any) error {
	path, err := splitPath(fieldPath)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{
		"script": map[string]any{
			"source": appendScript,
			"lang":   "painless",
			"params": map[string]any{"path": path, "items": items},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal append script: %w", err)
	}

	res, err := s.es.Update(collection, pathID(docType, id), bytes.NewReader(body), s.es.Update.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("append to %s/%s: %w", collection, docID(docType, id), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("append to "+collection+"/"+docID(docType, id), res)
	}
	return nil
}

func (s *ElasticStore) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: status %d", res.StatusCode)
	}
	return nil
}

// Close is a no-op; the client holds no resources beyond idle connections.
func (s *ElasticStore) Close() {}
