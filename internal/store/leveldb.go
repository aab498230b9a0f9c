package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"index-coordinator/pkg/logger"
)

// LevelDBIndexStore implements IndexStore with one LevelDB database per project.
type LevelDBIndexStore struct {
	baseDir string
	logger  logger.Logger
	mu      sync.Mutex
	clients map[string]*leveldb.DB
	closed  bool
}

// NewLevelDBIndexStore creates new LevelDB index store instance
func NewLevelDBIndexStore(baseDir string, logger logger.Logger) (*LevelDBIndexStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if err := checkDirWritable(baseDir); err != nil {
		return nil, fmt.Errorf("directory not writable: %w", err)
	}

	logger.Info("leveldb: index store initialized successfully baseDir %s", baseDir)
	return &LevelDBIndexStore{
		baseDir: baseDir,
		logger:  logger,
		clients: make(map[string]*leveldb.DB),
	}, nil
}

// project keys may hold characters that are not valid in a path
func (s *LevelDBIndexStore) dbPath(projectKey string) string {
	return filepath.Join(s.baseDir, url.PathEscape(projectKey), dataDir)
}

// getDB gets or creates LevelDB instance for specified project
func (s *LevelDBIndexStore) getDB(projectKey string) (*leveldb.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("index store is closed")
	}
	if db, ok := s.clients[projectKey]; ok {
		return db, nil
	}

	db, err := s.createDB(projectKey)
	if err != nil {
		return nil, err
	}
	s.clients[projectKey] = db
	return db, nil
}

func (s *LevelDBIndexStore) createDB(projectKey string) (*leveldb.DB, error) {
	dbPath := s.dbPath(projectKey)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory for %s: %w", projectKey, err)
	}

	db, err := openLevelDB(dbPath)
	if err != nil {
		s.logger.Warn("create_db: database open failed, attempting to recreate. project %s err:%v", projectKey, err)

		// 尝试删除损坏的数据库文件并重建
		if removeErr := os.RemoveAll(dbPath); removeErr != nil {
			return nil, fmt.Errorf("failed to open project database %s: %w (and failed to remove corrupted dir: %v)",
				dbPath, err, removeErr)
		}
		db, err = openLevelDB(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to recreate project database %s: %w", dbPath, err)
		}
	}

	s.logger.Debug("create_db: opened project database. project %s path %s", projectKey, dbPath)
	return db, nil
}

func openLevelDB(dbPath string) (*leveldb.DB, error) {
	db, err := leveldb.OpenFile(dbPath, &opt.Options{
		WriteBuffer:        4 * 1024 * 1024,
		BlockCacheCapacity: 8 * 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	return db, nil
}

// PutDocuments writes docs atomically, replacing documents with the same id.
func (s *LevelDBIndexStore) PutDocuments(ctx context.Context, projectKey string, docs []*Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	db, err := s.getDB(projectKey)
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}

	batch := new(leveldb.Batch)
	for _, doc := range docs {
		data, err := marshalDocument(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
		}
		batch.Put(documentKey(doc.ID), data)
	}
	if err := db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write %d documents of %s: %w", len(docs), projectKey, err)
	}
	return nil
}

func (s *LevelDBIndexStore) GetDocument(ctx context.Context, projectKey, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	db, err := s.getDB(projectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	data, err := db.Get(documentKey(id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return unmarshalDocument(data)
}

// Count returns the number of documents indexed for a project.
func (s *LevelDBIndexStore) Count(ctx context.Context, projectKey string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}

	db, err := s.getDB(projectKey)
	if err != nil {
		return 0, fmt.Errorf("failed to get database: %w", err)
	}

	iter := db.NewIterator(util.BytesPrefix([]byte(docPrefix+":")), nil)
	defer iter.Release()

	count := 0
	for iter.Next() {
		count++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("failed to count documents of %s: %w", projectKey, err)
	}
	return count, nil
}

// DeleteProject closes and removes the project database.
func (s *LevelDBIndexStore) DeleteProject(ctx context.Context, projectKey string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.clients[projectKey]; ok {
		if err := db.Close(); err != nil {
			s.logger.Warn("leveldb: failed to close database of %s: %v", projectKey, err)
		}
		delete(s.clients, projectKey)
	}

	if err := os.RemoveAll(filepath.Dir(s.dbPath(projectKey))); err != nil {
		return fmt.Errorf("failed to remove index of %s: %w", projectKey, err)
	}
	s.logger.Info("leveldb: deleted index of project %s", projectKey)
	return nil
}

// Close closes all database connections
func (s *LevelDBIndexStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for projectKey, db := range s.clients {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close project %s database: %w", projectKey, err))
		}
	}
	s.clients = nil

	if len(errs) > 0 {
		return fmt.Errorf("errors occurred while closing index store: %w", errors.Join(errs...))
	}
	s.logger.Info("leveldb_close: index store closed successfully")
	return nil
}
