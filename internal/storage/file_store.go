package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"badge-studio/internal/models"

	gocache "github.com/patrickmn/go-cache"
)

// FileStore keeps one JSON document per template under a directory, with
// decoded templates held in a short-lived memory cache.
type FileStore struct {
	dir    string
	cache  *gocache.Cache
	mu     sync.Mutex
	nextID int
	now    func() time.Time
}

// NewFileStore opens (and creates) a template directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create template directory '%s': %w", dir, err)
	}
	s := &FileStore{
		dir:   dir,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
		now:   func() time.Time { return time.Now().UTC() },
	}
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id > s.nextID {
			s.nextID = id
		}
	}
	return s, nil
}

func (s *FileStore) path(id int) string {
	return filepath.Join(s.dir, strconv.Itoa(id)+".json")
}

func cacheKey(id int) string {
	return "tpl:" + strconv.Itoa(id)
}

func (s *FileStore) ids() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory %s: %w", s.dir, err)
	}
	var ids []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// load returns a private copy of a template.
func (s *FileStore) load(id int) (*models.BadgeTemplate, error) {
	if cached, found := s.cache.Get(cacheKey(id)); found {
		t := cached.(models.BadgeTemplate)
		return cloneTemplate(t), nil
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read template %d: %w", id, err)
	}
	var t models.BadgeTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode template %d: %w", id, err)
	}
	s.cache.Set(cacheKey(id), t, gocache.DefaultExpiration)
	return cloneTemplate(t), nil
}

func (s *FileStore) write(t *models.BadgeTemplate) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode template %d: %w", t.ID, err)
	}
	path := s.path(t.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write template %d: %w", t.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write template %d: %w", t.ID, err)
	}
	s.cache.Set(cacheKey(t.ID), *cloneTemplate(*t), gocache.DefaultExpiration)
	return nil
}

func (s *FileStore) List(ctx context.Context, tenantID, eventID int) ([]models.BadgeTemplate, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	out := []models.BadgeTemplate{}
	for _, id := range ids {
		t, err := s.load(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if t.TenantID == tenantID && t.EventID == eventID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *FileStore) Get(ctx context.Context, tenantID, eventID, id int) (*models.BadgeTemplate, error) {
	t, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if t.TenantID != tenantID || t.EventID != eventID {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *FileStore) Create(ctx context.Context, tenantID, eventID int, p models.TemplatePayload) (*models.BadgeTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.nextID++
	t := &models.BadgeTemplate{
		ID:        s.nextID,
		TenantID:  tenantID,
		EventID:   eventID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.Apply(t)
	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *FileStore) Update(ctx context.Context, tenantID, eventID, id int, p models.TemplatePayload) (*models.BadgeTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.Get(ctx, tenantID, eventID, id)
	if err != nil {
		return nil, err
	}
	if p.Version != t.Version {
		return nil, fmt.Errorf("%w: template %d is at version %d, got %d", ErrVersionConflict, id, t.Version, p.Version)
	}
	p.Apply(t)
	t.Version++
	t.UpdatedAt = s.now()
	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *FileStore) Delete(ctx context.Context, tenantID, eventID, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(ctx, tenantID, eventID, id); err != nil {
		return err
	}
	s.cache.Delete(cacheKey(id))
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete template %d: %w", id, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	s.cache.Flush()
	return nil
}

func cloneTemplate(t models.BadgeTemplate) *models.BadgeTemplate {
	out := t
	out.FrontConfig = t.FrontConfig.Clone()
	if t.BackConfig != nil {
		back := t.BackConfig.Clone()
		out.BackConfig = &back
	}
	return &out
}
