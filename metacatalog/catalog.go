// Package metacatalog is a small bbolt-backed registry of table and index
// definitions, standing in for the full metadata catalog spec.md declares
// out of scope: it remembers which B-tree indexes exist and what key type
// they were built over, so a restarted engine can reopen them without a
// SQL catalog to consult.
//
// Grounded on _examples/cuemby-warren/pkg/storage/boltdb.go's bucket-per-
// entity, JSON-value BoltStore pattern, narrowed to the one bucket this
// package needs.
package metacatalog

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketIndexes = []byte("indexes")

// IndexDef describes one registered B-tree index: the table it covers,
// the field it is keyed on, and that field's type/width.
type IndexDef struct {
	Name         string `json:"name"`
	Table        string `json:"table"`
	Field        string `json:"field"`
	FieldType    int    `json:"field_type"`
	MaxFieldSize int    `json:"max_field_size"`
}

// Catalog wraps a bbolt database holding the registry.
type Catalog struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the catalog file at path.
func Open(path string) (*Catalog, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("metacatalog: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIndexes)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("metacatalog: init buckets: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying bbolt database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// RegisterIndex upserts def, keyed by def.Name.
func (c *Catalog) RegisterIndex(def IndexDef) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndexes)
		data, err := json.Marshal(def)
		if err != nil {
			return fmt.Errorf("metacatalog: marshal index %s: %w", def.Name, err)
		}
		return b.Put([]byte(def.Name), data)
	})
}

// LookupIndex returns the registered definition for name, and false if
// none exists.
func (c *Catalog) LookupIndex(name string) (IndexDef, bool, error) {
	var def IndexDef
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndexes)
		data := b.Get([]byte(name))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &def)
	})
	if err != nil {
		return IndexDef{}, false, fmt.Errorf("metacatalog: lookup index %s: %w", name, err)
	}
	return def, found, nil
}

// ListIndexes returns every registered index definition, for startup
// bootstrap and diagnostics.
func (c *Catalog) ListIndexes() ([]IndexDef, error) {
	var defs []IndexDef
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndexes)
		return b.ForEach(func(_, v []byte) error {
			var def IndexDef
			if err := json.Unmarshal(v, &def); err != nil {
				return err
			}
			defs = append(defs, def)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("metacatalog: list indexes: %w", err)
	}
	return defs, nil
}

// DeleteIndex removes a registered definition.
func (c *Catalog) DeleteIndex(name string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndexes).Delete([]byte(name))
	})
}
