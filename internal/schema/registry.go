package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog is a set of tables keyed by name. The zero value is not usable;
// create one with NewCatalog.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]Table)}
}

// Add validates and adds a table.
// Returns an error if the table is invalid or the name is already taken.
func (c *Catalog) Add(t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[t.Name]; exists {
		return fmt.Errorf("table already registered: %s", t.Name)
	}

	if t.DisplayName == "" {
		t.DisplayName = t.Name
	}
	for i := range t.Columns {
		if t.Columns[i].DisplayName == "" {
			t.Columns[i].DisplayName = t.Columns[i].Name
		}
	}

	c.tables[t.Name] = t
	return nil
}

// Get returns a table by name.
func (c *Catalog) Get(name string) (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[name]
	return t, ok
}

// All returns every table sorted by name.
func (c *Catalog) All() []Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Table, 0, len(c.tables))
	for _, t := range c.tables {
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}

var defaultCatalog = NewCatalog()

// Register adds a table to the default catalog.
// Panics if the table is invalid or already registered.
func Register(t Table) {
	if err := defaultCatalog.Add(t); err != nil {
		panic(err)
	}
}

// Default returns the process-wide catalog populated by Register.
func Default() *Catalog {
	return defaultCatalog
}
