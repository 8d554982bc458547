package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/imagineos/tapthepost/internal/archive"
)

// ErrNotFound is returned for unknown or expired downloads
var ErrNotFound = errors.New("download not found")

// ExportStore keeps finished artifacts around long enough for the browser
// to download them. Entries expire after the configured TTL.
type ExportStore struct {
	db  *badger.DB
	ttl time.Duration
}

type exportMeta struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Download is a stored artifact plus its bookkeeping
type Download struct {
	ID string
	archive.File
	CreatedAt time.Time
}

// OpenExports opens the store in dir, or in memory when dir is empty
func OpenExports(dir string, ttl time.Duration) (*ExportStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open export store: %w", err)
	}

	return &ExportStore{db: db, ttl: ttl}, nil
}

func metaKey(id string) []byte { return []byte("export/" + id + "/meta") }
func dataKey(id string) []byte { return []byte("export/" + id + "/data") }

// Put stores f and returns the id it can be downloaded under
func (s *ExportStore) Put(f archive.File) (string, error) {
	id := uuid.NewString()

	meta, err := json.Marshal(exportMeta{
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        len(f.Data),
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("encode export metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(s.entry(metaKey(id), meta)); err != nil {
			return err
		}
		return txn.SetEntry(s.entry(dataKey(id), f.Data))
	})
	if err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}

	slog.Debug("Export stored", "download_id", id, "name", f.Name, "bytes", len(f.Data))
	return id, nil
}

func (s *ExportStore) entry(key, val []byte) *badger.Entry {
	e := badger.NewEntry(key, val)
	if s.ttl > 0 {
		e = e.WithTTL(s.ttl)
	}
	return e
}

// Get loads a stored artifact
func (s *ExportStore) Get(id string) (*Download, error) {
	var (
		meta exportMeta
		data []byte
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(id))
		if err != nil {
			return err
		}
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
		if err != nil {
			return fmt.Errorf("decode export metadata: %w", err)
		}

		item, err = txn.Get(dataKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load export %s: %w", id, err)
	}

	return &Download{
		ID:        id,
		File:      archive.File{Name: meta.Name, ContentType: meta.ContentType, Data: data},
		CreatedAt: meta.CreatedAt,
	}, nil
}

// Delete drops an artifact; deleting an unknown id is not an error
func (s *ExportStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(metaKey(id)); err != nil {
			return err
		}
		return txn.Delete(dataKey(id))
	})
}

// Collect reclaims value log space held by expired artifacts
func (s *ExportStore) Collect() {
	if s.db.Opts().InMemory {
		return
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				slog.Warn("Export store GC failed", "err", err)
			}
			return
		}
	}
}

func (s *ExportStore) Close() error {
	return s.db.Close()
}

type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Warningf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Infof(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Debugf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
