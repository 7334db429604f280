package domains

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"go.uber.org/zap"
)

// LevelDB is a durable Registry backed by an embedded LevelDB file store.
// Mappings survive process restarts; reads see prior writes within the same
// process (and across restarts once Set has returned, since writes are
// synced).
type LevelDB struct {
	mu     sync.Mutex // serialises the read-check-write in Set
	db     *leveldb.DB
	logger *zap.Logger
}

// OpenLevelDB opens (or creates) the registry database at path.
func OpenLevelDB(path string, logger *zap.Logger) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open registry db %q: %w", path, err)
	}
	return &LevelDB{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Get implements Registry.
func (l *LevelDB) Get(_ context.Context, domain string) (string, error) {
	value, err := l.db.Get([]byte(domain), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read registry entry %q: %w", domain, err)
	}
	return string(value), nil
}

// Set implements Registry. Writes are synced to disk before returning so a
// crash after a successful Set cannot orphan a freshly created container.
func (l *LevelDB) Set(_ context.Context, domain, containerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.db.Get([]byte(domain), nil)
	switch {
	case err == nil:
		if string(existing) == containerID {
			return nil
		}
		return ErrConflict
	case !errors.Is(err, leveldb.ErrNotFound):
		return fmt.Errorf("read registry entry %q: %w", domain, err)
	}

	if err := l.db.Put([]byte(domain), []byte(containerID), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("write registry entry %q: %w", domain, err)
	}
	l.logger.Debug("domain registered",
		zap.String("domain", domain),
		zap.String("container_id", containerID),
	)
	return nil
}

// List implements Registry.
func (l *LevelDB) List(_ context.Context) (map[string]string, error) {
	out := make(map[string]string)
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		out[string(iter.Key())] = string(iter.Value())
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate registry: %w", err)
	}
	return out, nil
}
