// Package catalog loads the materials catalog and normalizes its entries
// into the uniform records both search indices are built over.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Properties is one material's raw property mapping as it appears in the
// catalog document. Values may be numbers, strings, nulls, or string lists;
// any field may be absent.
type Properties map[string]any

// Catalog is the parsed catalog document. Entry order follows the document
// and is preserved for stable ranking tie-breaks.
type Catalog struct {
	names   []string
	entries map[string]Properties
}

// Load reads a catalog JSON file, a top-level object mapping material name
// to its properties.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a catalog document, keeping the entries in document order.
// A plain map decode would lose ordering, so the top-level object is walked
// token by token.
func Parse(data []byte) (*Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("catalog document must be a JSON object, got %v", tok)
	}

	cat := &Catalog{entries: make(map[string]Properties)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode catalog key: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("catalog key is not a string: %v", keyTok)
		}

		var props Properties
		if err := dec.Decode(&props); err != nil {
			return nil, fmt.Errorf("decode properties for %q: %w", name, err)
		}

		if _, dup := cat.entries[name]; !dup {
			cat.names = append(cat.names, name)
		}
		cat.entries[name] = props
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return cat, nil
}

// Names returns the material names in document order.
func (c *Catalog) Names() []string { return c.names }

// Get returns the raw properties for a material name.
func (c *Catalog) Get(name string) (Properties, bool) {
	p, ok := c.entries[name]
	return p, ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.names) }
