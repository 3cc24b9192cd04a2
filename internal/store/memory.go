package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// DefaultAuditEntries is the audit log bound used when none is configured.
const DefaultAuditEntries = 100

// MemoryTemplates keeps templates in a map.
type MemoryTemplates struct {
	mu   sync.RWMutex
	byID map[string]core.MappingTemplate
}

// NewMemoryTemplates creates an empty template store.
func NewMemoryTemplates() *MemoryTemplates {
	return &MemoryTemplates{byID: make(map[string]core.MappingTemplate)}
}

var _ core.TemplateStore = (*MemoryTemplates)(nil)

// List returns the table's templates ordered by name.
func (s *MemoryTemplates) List(_ context.Context, tableName string) ([]core.MappingTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.MappingTemplate, 0)
	for _, t := range s.byID {
		if t.TableName == tableName {
			out = append(out, cloneTemplate(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *MemoryTemplates) Get(_ context.Context, id string) (core.MappingTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	return cloneTemplate(t), nil
}

func (s *MemoryTemplates) Create(_ context.Context, name, tableName string, mappings []core.ColumnMapping) (core.MappingTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(tableName, name, "") {
		return core.MappingTemplate{}, fmt.Errorf("%w: %q for table %s", core.ErrTemplateExists, name, tableName)
	}

	now := time.Now().UTC()
	t := core.MappingTemplate{
		ID:        uuid.NewString(),
		Name:      name,
		TableName: tableName,
		Mappings:  cloneMappings(mappings),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[t.ID] = t
	return cloneTemplate(t), nil
}

func (s *MemoryTemplates) Update(_ context.Context, id, name string, mappings []core.ColumnMapping) (core.MappingTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	if s.nameTaken(t.TableName, name, id) {
		return core.MappingTemplate{}, fmt.Errorf("%w: %q for table %s", core.ErrTemplateExists, name, t.TableName)
	}

	t.Name = name
	t.Mappings = cloneMappings(mappings)
	t.UpdatedAt = time.Now().UTC()
	s.byID[id] = t
	return cloneTemplate(t), nil
}

func (s *MemoryTemplates) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	delete(s.byID, id)
	return nil
}

// nameTaken reports whether another template of the table uses name.
// Caller holds mu.
func (s *MemoryTemplates) nameTaken(tableName, name, exceptID string) bool {
	for id, t := range s.byID {
		if id != exceptID && t.TableName == tableName && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// MemoryAudit is a bounded, newest-first audit log.
type MemoryAudit struct {
	mu      sync.Mutex
	max     int
	entries []core.AuditLog // newest first
}

// NewMemoryAudit creates a log that keeps at most max entries.
func NewMemoryAudit(max int) *MemoryAudit {
	if max <= 0 {
		max = DefaultAuditEntries
	}
	return &MemoryAudit{max: max}
}

var _ core.AuditStore = (*MemoryAudit)(nil)

// Append adds an entry, evicting the oldest when the log is full.
func (s *MemoryAudit) Append(_ context.Context, entry core.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]core.AuditLog{entry}, s.entries...)
	if len(s.entries) > s.max {
		s.entries = s.entries[:s.max]
	}
	return nil
}

// List returns up to limit entries, newest first. A limit of 0 returns all.
func (s *MemoryAudit) List(_ context.Context, limit int) ([]core.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	return append(make([]core.AuditLog, 0, n), s.entries[:n]...), nil
}

// PurgeBefore removes entries stamped before cutoff.
func (s *MemoryAudit) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]core.AuditLog, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	purged := int64(len(s.entries) - len(kept))
	s.entries = kept
	return purged, nil
}

func cloneTemplate(t core.MappingTemplate) core.MappingTemplate {
	t.Mappings = cloneMappings(t.Mappings)
	return t
}

func cloneMappings(ms []core.ColumnMapping) []core.ColumnMapping {
	out := make([]core.ColumnMapping, len(ms))
	for i, m := range ms {
		if m.TableColumn != nil {
			c := *m.TableColumn
			m.TableColumn = &c
		}
		out[i] = m
	}
	return out
}
