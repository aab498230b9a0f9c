package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"index-coordinator/pkg/logger"
)

const propertyKeyPrefix = "prop:"

// LevelDBPropertyStore keeps project properties in a local LevelDB database.
type LevelDBPropertyStore struct {
	db     *leveldb.DB
	logger logger.Logger
}

// NewLevelDBPropertyStore opens (or recreates when corrupted) the store under dir.
func NewLevelDBPropertyStore(dir string, logger logger.Logger) (*LevelDBPropertyStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create property store directory: %w", err)
	}

	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		logger.Warn("leveldb: property store open failed, attempting to recreate. dir %s err:%v", dir, err)
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			return nil, fmt.Errorf("failed to open property store %s: %w (and failed to remove corrupted dir: %v)",
				dir, err, removeErr)
		}
		db, err = leveldb.OpenFile(dir, &opt.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to recreate property store %s: %w", dir, err)
		}
	}

	logger.Info("leveldb: property store initialized successfully dir %s", dir)
	return &LevelDBPropertyStore{db: db, logger: logger}, nil
}

func propertyKey(projectKey, property string) []byte {
	return []byte(propertyKeyPrefix + projectKey + ":" + property)
}

func encodeMillis(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(toMillis(t)))
	return buf
}

func (s *LevelDBPropertyStore) ReadDatetime(ctx context.Context, projectKey, property string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	data, err := s.db.Get(propertyKey(projectKey, property), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("leveldb: failed to read property %s of %s: %w", property, projectKey, err)
	}
	if len(data) != 8 {
		return time.Time{}, false, fmt.Errorf("leveldb: corrupted property %s of %s: %d bytes", property, projectKey, len(data))
	}
	return fromMillis(int64(binary.BigEndian.Uint64(data))), true, nil
}

func (s *LevelDBPropertyStore) StoreDatetime(ctx context.Context, projectKey, property string, value time.Time,
	batch *PropertyBatch) error {
	if batch != nil {
		batch.add(projectKey, property, value)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.Put(propertyKey(projectKey, property), encodeMillis(value), nil); err != nil {
		return fmt.Errorf("leveldb: failed to store property %s of %s: %w", property, projectKey, err)
	}
	return nil
}

func (s *LevelDBPropertyStore) FlushBatch(ctx context.Context, batch *PropertyBatch) error {
	if batch.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b := new(leveldb.Batch)
	for _, entry := range batch.entries {
		b.Put(propertyKey(entry.ProjectKey, entry.PropertyName), encodeMillis(entry.Value))
	}
	if err := s.db.Write(b, nil); err != nil {
		return fmt.Errorf("leveldb: failed to write property batch: %w", err)
	}
	batch.reset()
	return nil
}

func (s *LevelDBPropertyStore) DeleteProperties(ctx context.Context, projectKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	iter := s.db.NewIterator(util.BytesPrefix([]byte(propertyKeyPrefix+projectKey+":")), nil)
	defer iter.Release()

	b := new(leveldb.Batch)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		b.Delete(key)
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldb: failed to iterate properties of %s: %w", projectKey, err)
	}
	return s.db.Write(b, nil)
}

func (s *LevelDBPropertyStore) Close() error {
	return s.db.Close()
}
