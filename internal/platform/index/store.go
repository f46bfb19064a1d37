// Package index provides the document store that synchronized vocabulary is
// written to. Documents are addressed by (collection, type, id); writes are
// upserts and the last write wins.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsupportedScheme is returned by Open for an index URL it cannot serve.
var ErrUnsupportedScheme = errors.New("unsupported index url scheme")

// BulkItem is one document of a BulkUpsert call.
type BulkItem struct {
	Type string
	ID   string
	Doc  any
}

// Store is a document store with upsert-on-conflict semantics.
//
// Get reports a document as absent on any failure, not only a true miss;
// callers cannot tell a transient fault from a missing document.
type Store interface {
	EnsureCollections(ctx context.Context, names []string) error
	Get(ctx context.Context, collection, docType, id string) (json.RawMessage, bool)
	Upsert(ctx context.Context, collection, docType, id string, doc any) error
	BulkUpsert(ctx context.Context, collection string, items []BulkItem) error
	// AppendToArray appends items (a slice) to the array found at the dotted
	// fieldPath of an existing document, creating the array if missing.
	AppendToArray(ctx context.Context, collection, docType, id, fieldPath string, items any) error
	Ping(ctx context.Context) error
	Close()
}

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

func splitPath(fieldPath string) ([]string, error) {
	if fieldPath == "" {
		return nil, fmt.Errorf("empty field path")
	}
	parts := strings.Split(fieldPath, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid field path %q", fieldPath)
		}
	}
	return parts, nil
}

// toObject round-trips doc through JSON so every backend merges plain
// map[string]any values regardless of the caller's struct types.
func toObject(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	return obj, nil
}

func toArray(items any) ([]any, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	var arr []any
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("items are not a JSON array: %w", err)
	}
	return arr, nil
}
