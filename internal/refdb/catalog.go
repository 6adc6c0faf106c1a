package refdb

import (
	"fmt"
	"sort"

	"github.com/hyperjump/mitate/internal/models"
)

// Catalog maps object ids to display names. Read-only after construction.
type Catalog struct {
	ids   []models.ObjectID
	names map[models.ObjectID]string
	pos   map[models.ObjectID]int
}

// NewCatalog builds a catalog from names. Ids must be non-negative.
func NewCatalog(names map[models.ObjectID]string) (*Catalog, error) {
	c := &Catalog{
		ids:   make([]models.ObjectID, 0, len(names)),
		names: make(map[models.ObjectID]string, len(names)),
		pos:   make(map[models.ObjectID]int, len(names)),
	}
	for id, name := range names {
		if id < 0 {
			return nil, fmt.Errorf("negative object id %d", id)
		}
		c.ids = append(c.ids, id)
		c.names[id] = name
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	for i, id := range c.ids {
		c.pos[id] = i
	}
	return c, nil
}

// Len returns the number of objects.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// IDs returns the object ids in ascending order.
func (c *Catalog) IDs() []models.ObjectID {
	return append([]models.ObjectID(nil), c.ids...)
}

// Name returns the display name for id.
func (c *Catalog) Name(id models.ObjectID) (string, bool) {
	name, ok := c.names[id]
	return name, ok
}

// Contains reports whether id is in the catalog.
func (c *Catalog) Contains(id models.ObjectID) bool {
	_, ok := c.names[id]
	return ok
}

// Position returns the rank of id among the ascending catalog ids.
func (c *Catalog) Position(id models.ObjectID) (int, bool) {
	p, ok := c.pos[id]
	return p, ok
}

// At returns the id at rank i in ascending order.
func (c *Catalog) At(i int) models.ObjectID {
	return c.ids[i]
}
