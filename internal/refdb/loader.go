package refdb

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/table"
)

var errEmptyFile = errors.New("no rows")

// Load reads the object catalog and the labeled descriptor table, and checks that
// every descriptor's object id is in the catalog. Any failure returns a *models.LoadError
// and no partial state.
//
// Object table rows: id<TAB>name. Descriptor table rows: id<TAB>tag<TAB>v1 ... v<dim>.
func Load(objectsPath, descriptorsPath string, dim int) (*Database, *Catalog, error) {
	catalog, err := LoadCatalog(objectsPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := LoadDescriptors(descriptorsPath, dim)
	if err != nil {
		return nil, nil, err
	}
	for i := 0; i < db.Len(); i++ {
		if id := db.Object(i); !catalog.Contains(id) {
			return nil, nil, &models.LoadError{
				Path: descriptorsPath,
				Err:  fmt.Errorf("row %d: %w: %d", i+1, models.ErrUnknownObject, id),
			}
		}
	}
	return db, catalog, nil
}

// LoadCatalog reads an id<TAB>name table. Names may contain spaces but not tabs.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	names := make(map[models.ObjectID]string)
	err = table.Scan(f, func(line int, fields []string) error {
		if len(fields) != 2 {
			return &models.LoadError{Path: path, Line: line, Err: fmt.Errorf("expected 2 fields, got %d", len(fields))}
		}
		id, err := table.ParseInt(fields[0])
		if err != nil {
			return &models.LoadError{Path: path, Line: line, Err: fmt.Errorf("object id: %w", err)}
		}
		if id < 0 {
			return &models.LoadError{Path: path, Line: line, Err: fmt.Errorf("negative object id %d", id)}
		}
		if _, dup := names[models.ObjectID(id)]; dup {
			return &models.LoadError{Path: path, Line: line, Err: fmt.Errorf("duplicate object id %d", id)}
		}
		names[models.ObjectID(id)] = strings.TrimSpace(fields[1])
		return nil
	})
	if err != nil {
		return nil, asLoadError(path, err)
	}
	if len(names) == 0 {
		return nil, &models.LoadError{Path: path, Err: errEmptyFile}
	}
	return NewCatalog(names)
}

// LoadDescriptors reads the labeled descriptor table in a single pass.
func LoadDescriptors(path string, dim int) (*Database, error) {
	if dim <= 0 {
		return nil, &models.LoadError{Path: path, Err: fmt.Errorf("dimensions must be positive, got %d", dim)}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	db := newDatabase(dim, 1024)
	want := 2 + dim
	err = table.Scan(f, func(line int, fields []string) error {
		if len(fields) != want {
			return &models.LoadError{Path: path, Line: line,
				Err: fmt.Errorf("%w: expected %d fields, got %d", models.ErrDimensionMismatch, want, len(fields))}
		}
		id, err := table.ParseInt(fields[0])
		if err != nil {
			return &models.LoadError{Path: path, Line: line, Err: fmt.Errorf("object id: %w", err)}
		}
		tag, err := table.ParseInt(fields[1])
		if err != nil {
			return &models.LoadError{Path: path, Line: line, Err: fmt.Errorf("tag: %w", err)}
		}
		vec, err := table.ParseFloats(fields[2:])
		if err != nil {
			return &models.LoadError{Path: path, Line: line, Err: err}
		}
		if err := db.add(vec, models.Tag(tag), models.ObjectID(id)); err != nil {
			return &models.LoadError{Path: path, Line: line, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, asLoadError(path, err)
	}
	if db.Len() == 0 {
		return nil, &models.LoadError{Path: path, Err: errEmptyFile}
	}
	return db, nil
}

func asLoadError(path string, err error) error {
	var le *models.LoadError
	if errors.As(err, &le) {
		return err
	}
	return &models.LoadError{Path: path, Err: err}
}
