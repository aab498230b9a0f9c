package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrDocumentNotFound 文档不存在
var ErrDocumentNotFound = errors.New("document not found")

const (
	docPrefix = "doc"
	dataDir   = "data"
)

// Document is one searchable record of a project.
type Document struct {
	ID         string    `json:"id"`
	ProjectKey string    `json:"projectKey"`
	RecordID   string    `json:"recordId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Updated    time.Time `json:"updated"`
	IndexedAt  time.Time `json:"indexedAt"`
}

// IndexStore keeps the search index, partitioned per project.
type IndexStore interface {
	PutDocuments(ctx context.Context, projectKey string, docs []*Document) error
	GetDocument(ctx context.Context, projectKey, id string) (*Document, error)
	Count(ctx context.Context, projectKey string) (int, error)
	DeleteProject(ctx context.Context, projectKey string) error
	Close() error
}

func documentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", docPrefix, id))
}

func marshalDocument(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

func unmarshalDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// checkDirWritable checks if directory is writable
func checkDirWritable(dir string) error {
	testFile := filepath.Join(dir, ".test-write")
	file, err := os.Create(testFile)
	if err != nil {
		return err
	}
	file.Close()
	return os.Remove(testFile)
}
