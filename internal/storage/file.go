package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

// lockTimeout is how long a file store operation waits for the directory lock.
const lockTimeout = 5 * time.Second

var _ domain.RecipeStore = (*FileStore)(nil)

// FileStore keeps one JSON document per recipe in a directory. A lock file
// serializes writers across processes.
type FileStore struct {
	dir   string
	lock  *flock.Flock
	newID func() string
	log   *logger.Logger
}

// NewFileStore opens (and creates) a store rooted at dir.
func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &FileStore{
		dir:   dir,
		lock:  flock.New(filepath.Join(dir, ".dagchef.lock")),
		newID: newPersistedID,
		log:   log,
	}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// checkID rejects ids that would escape the store directory.
func checkID(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid recipe id %q", id)
	}
	return nil
}

// withLock runs fn while holding the directory lock.
func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("timeout waiting for store lock in %s", s.dir)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.log.Warn("releasing store lock: %v", err)
		}
	}()
	return fn()
}

func (s *FileStore) read(id string) (*domain.Document, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.NotFoundError{Kind: "recipe", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("opening recipe %s: %w", id, err)
	}
	defer f.Close()
	return wire.Decode(f)
}

// write replaces the document atomically via a temp file and rename.
func (s *FileStore) write(doc *domain.Document) error {
	if err := checkID(doc.ID); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, doc.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if err := wire.Encode(tmp, doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encoding recipe %s: %w", doc.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(doc.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing recipe %s: %w", doc.ID, err)
	}
	return nil
}

// List returns summaries of every recipe file, sorted by title.
func (s *FileStore) List(ctx context.Context) ([]domain.RecipeSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}
	var out []domain.RecipeSummary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		doc, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.log.Warn("skipping %s: %v", name, err)
			continue
		}
		out = append(out, doc.Summary())
	}
	sortSummaries(out)
	return out, nil
}

// Load reads a recipe document.
func (s *FileStore) Load(ctx context.Context, id string) (*domain.Document, error) {
	return s.read(id)
}

// Create writes doc, replacing any file with the same id.
func (s *FileStore) Create(ctx context.Context, doc *domain.Document) error {
	if err := wire.Check(doc); err != nil {
		return err
	}
	return s.withLock(ctx, func() error {
		s.log.Debug("writing recipe %s to %s", doc.ID, s.dir)
		return s.write(doc)
	})
}

// Save applies a change set to the stored file.
func (s *FileStore) Save(ctx context.Context, cs *domain.ChangeSet) (*domain.IDMap, error) {
	var ids *domain.IDMap
	err := s.withLock(ctx, func() error {
		cur, err := s.read(cs.RecipeID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		next, m, err := wire.Apply(cur, cs, s.newID)
		if err != nil {
			return fmt.Errorf("saving recipe %s: %w", cs.RecipeID, err)
		}
		ids = m
		return s.write(next)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete removes a recipe file.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return s.withLock(ctx, func() error {
		err := os.Remove(s.path(id))
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.NotFoundError{Kind: "recipe", ID: id}
		}
		return err
	})
}
