package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/asarvarbek/tgshop-backend/internal/domain"
)

// ErrWriteFailed is returned by Update when the modified collection could
// not be persisted. Callers decide whether to escalate it: order creation
// does, everything else logs and carries on.
var ErrWriteFailed = errors.New("store: write failed")

type Slot string

const (
	SlotMenu    Slot = "menu"
	SlotOrders  Slot = "orders"
	SlotUploads Slot = "uploads"
)

type Record interface {
	RecordID() int
}

// NextID returns 1 for an empty collection, otherwise max existing id + 1.
// Ids are never reused after deletion within a process lifetime because the
// max is taken over the live collection before every append.
func NextID[T Record](items []T) int {
	next := 1
	for _, item := range items {
		if id := item.RecordID(); id >= next {
			next = id + 1
		}
	}
	return next
}

// Collection is one named JSON-array file. Every operation is a whole-file
// read or rewrite; the mutex couples load-modify-save sequences so that two
// concurrent writers on the same slot cannot lose an update.
type Collection[T any] struct {
	mu     sync.Mutex
	slot   Slot
	path   string
	logger *slog.Logger
}

func NewCollection[T any](slot Slot, path string, logger *slog.Logger) *Collection[T] {
	return &Collection[T]{slot: slot, path: path, logger: logger}
}

// Load returns the full persisted collection. A missing, unreadable, or
// corrupt file degrades to an empty collection; the fault is only logged.
func (c *Collection[T]) Load() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// Save overwrites the slot with the given collection. It reports failure
// instead of returning an error so read-side callers keep working when the
// disk misbehaves.
func (c *Collection[T]) Save(items []T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(items)
}

// Update runs fn over the loaded collection and persists its result, all
// under the slot lock. An error from fn aborts without writing; a failed
// write surfaces as ErrWriteFailed.
func (c *Collection[T]) Update(fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fn(c.load())
	if err != nil {
		return err
	}
	if !c.save(next) {
		return ErrWriteFailed
	}
	return nil
}

func (c *Collection[T]) load() []T {
	data, err := os.ReadFile(c.path)
	if err != nil {
		c.logger.Error("failed to read collection", "slot", c.slot, "path", c.path, "error", err)
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		c.logger.Error("failed to parse collection", "slot", c.slot, "path", c.path, "error", err)
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

func (c *Collection[T]) save(items []T) bool {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		c.logger.Error("failed to encode collection", "slot", c.slot, "error", err)
		return false
	}

	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		c.logger.Error("failed to write collection", "slot", c.slot, "path", c.path, "error", err)
		return false
	}
	return true
}

// Paths locates the data directory and the three slot files.
type Paths struct {
	DataDir string
	Menu    string
	Orders  string
	Uploads string
}

// BackupsDir is where the backup tooling keeps point-in-time copies of the
// slot files, one timestamped directory per backup.
func (p Paths) BackupsDir() string {
	return filepath.Join(p.DataDir, "backups")
}

// Store bundles the three independently persisted slots. There is no
// cross-slot transaction; each slot has its own lock and file.
type Store struct {
	Menu    *Collection[domain.Product]
	Orders  *Collection[domain.Order]
	Uploads *Collection[domain.Upload]
}

// Open ensures the data directory, backups directory, and slot files exist
// (new files start as empty arrays) and returns the assembled store.
func Open(p Paths, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(p.DataDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.BackupsDir(), 0o755); err != nil {
		return nil, err
	}

	for _, path := range []string{p.Menu, p.Orders, p.Uploads} {
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, err
		}
		logger.Info("created data file", "path", path)
	}

	return &Store{
		Menu:    NewCollection[domain.Product](SlotMenu, p.Menu, logger),
		Orders:  NewCollection[domain.Order](SlotOrders, p.Orders, logger),
		Uploads: NewCollection[domain.Upload](SlotUploads, p.Uploads, logger),
	}, nil
}
