package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

const (
	headerSize    = 8
	sweepInterval = 5 * time.Minute
)

// LevelDBStore persists entries on disk. Each value is prefixed with its
// expiry as big-endian unix nanoseconds; zero means no expiry.
type LevelDBStore struct {
	db     *leveldb.DB
	logger *zap.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// OpenLevelDB opens or creates a store at path.
func OpenLevelDB(path string, logger *zap.Logger) (*LevelDBStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	s := &LevelDBStore{
		db:     db,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.sweeper()
	return s, nil
}

func (s *LevelDBStore) Get(_ context.Context, key string) ([]byte, error) {
	b, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, leveldb.ErrClosed) {
		return nil, ErrClosed
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb get: %w", err)
	}

	value, expired, err := unpack(b, time.Now())
	if err != nil {
		return nil, err
	}
	if expired {
		_ = s.db.Delete([]byte(key), nil)
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *LevelDBStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.db.Put([]byte(key), pack(value, ttl, time.Now()), nil); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("leveldb delete: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Ping(context.Context) error {
	if _, err := s.db.GetProperty("leveldb.num-files-at-level0"); err != nil {
		return fmt.Errorf("leveldb ping: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		err = s.db.Close()
	})
	return err
}

// Sweep deletes expired entries and returns how many were removed.
func (s *LevelDBStore) Sweep() (int, error) {
	now := time.Now()
	it := s.db.NewIterator(&util.Range{}, nil)
	defer it.Release()

	batch := new(leveldb.Batch)
	for it.Next() {
		if _, expired, err := unpack(it.Value(), now); err != nil || expired {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	return batch.Len(), s.db.Write(batch, nil)
}

func (s *LevelDBStore) sweeper() {
	defer close(s.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n, err := s.Sweep(); err != nil {
				s.logger.Warn("LevelDB sweep failed", zap.Error(err))
			} else if n > 0 {
				s.logger.Debug("LevelDB sweep", zap.Int("removed", n))
			}
		}
	}
}

func pack(value []byte, ttl time.Duration, now time.Time) []byte {
	out := make([]byte, headerSize+len(value))
	var expire int64
	if ttl > 0 {
		expire = now.Add(ttl).UnixNano()
	}
	binary.BigEndian.PutUint64(out[:headerSize], uint64(expire))
	copy(out[headerSize:], value)
	return out
}

func unpack(b []byte, now time.Time) (value []byte, expired bool, err error) {
	if len(b) < headerSize {
		return nil, false, errors.New("leveldb: value too short")
	}
	expire := int64(binary.BigEndian.Uint64(b[:headerSize]))
	if expire != 0 && now.UnixNano() > expire {
		return nil, true, nil
	}
	return b[headerSize:], false, nil
}
