// Package export renders one material's raw catalog properties as a
// downloadable file.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/helios-eng/helios/internal/catalog"
	"github.com/helios-eng/helios/internal/domain"
)

// File is a rendered export ready to be served as an attachment.
type File struct {
	Name      string
	MediaType string
	Content   []byte
}

// Service exports catalog entries. It reads the raw properties, not the
// normalized records, so exports survive normalization's "N/A" degradation.
type Service struct {
	catalog *catalog.Catalog
}

// New creates an export service over the loaded catalog.
func New(cat *catalog.Catalog) *Service {
	return &Service{catalog: cat}
}

// Export renders the named material in the requested format: "json", "csv",
// or "txt". Property order is sorted by key so exports are deterministic.
func (s *Service) Export(name, format string) (File, error) {
	props, ok := s.catalog.Get(name)
	if !ok {
		return File{}, fmt.Errorf("%w: %q", domain.ErrMaterialNotFound, name)
	}

	switch format {
	case "json":
		content, err := json.MarshalIndent(props, "", "  ")
		if err != nil {
			return File{}, fmt.Errorf("marshal %q: %w", name, err)
		}
		return File{Name: name + ".json", MediaType: "application/json", Content: content}, nil

	case "csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"Property", "Value"}); err != nil {
			return File{}, fmt.Errorf("write csv header: %w", err)
		}
		for _, key := range sortedKeys(props) {
			if err := w.Write([]string{key, renderValue(props[key])}); err != nil {
				return File{}, fmt.Errorf("write csv row %q: %w", key, err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return File{}, fmt.Errorf("flush csv: %w", err)
		}
		return File{Name: name + ".csv", MediaType: "text/csv", Content: buf.Bytes()}, nil

	case "txt":
		var b strings.Builder
		for _, key := range sortedKeys(props) {
			fmt.Fprintf(&b, "%s: %s\n", key, renderValue(props[key]))
		}
		return File{Name: name + ".txt", MediaType: "text/plain", Content: []byte(b.String())}, nil

	default:
		return File{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
}

func sortedKeys(props catalog.Properties) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, "; ")
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
