package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/helios-eng/helios/internal/catalog"
	"github.com/helios-eng/helios/internal/domain"
)

func testService(t *testing.T) *Service {
	t.Helper()
	cat, err := catalog.Parse([]byte(`{
  "Aluminum 6061-T6": {
    "category": "Aluminum Alloys",
    "density": 2.7,
    "tensile_strength_yield": 276,
    "common_applications": ["Aircraft fittings", "Bike frames"]
  }
}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return New(cat)
}

func TestExport_JSON(t *testing.T) {
	svc := testService(t)

	file, err := svc.Export("Aluminum 6061-T6", "json")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if file.Name != "Aluminum 6061-T6.json" || file.MediaType != "application/json" {
		t.Errorf("file = %q %q", file.Name, file.MediaType)
	}

	var decoded map[string]any
	if err := json.Unmarshal(file.Content, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if decoded["category"] != "Aluminum Alloys" {
		t.Errorf("category = %v", decoded["category"])
	}
}

func TestExport_CSV(t *testing.T) {
	svc := testService(t)

	file, err := svc.Export("Aluminum 6061-T6", "csv")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if file.MediaType != "text/csv" {
		t.Errorf("media type = %q", file.MediaType)
	}

	lines := strings.Split(strings.TrimSpace(string(file.Content)), "\n")
	if lines[0] != "Property,Value" {
		t.Errorf("header = %q", lines[0])
	}
	// 4 properties after the header, sorted by key.
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[1], "category,") {
		t.Errorf("rows not sorted by key: %q", lines[1])
	}
	if !strings.Contains(string(file.Content), "density,2.7") {
		t.Errorf("density row missing:\n%s", file.Content)
	}
}

func TestExport_TXT(t *testing.T) {
	svc := testService(t)

	file, err := svc.Export("Aluminum 6061-T6", "txt")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if file.MediaType != "text/plain" {
		t.Errorf("media type = %q", file.MediaType)
	}
	content := string(file.Content)
	if !strings.Contains(content, "density: 2.7\n") {
		t.Errorf("density line missing:\n%s", content)
	}
	if !strings.Contains(content, "common_applications: Aircraft fittings; Bike frames\n") {
		t.Errorf("applications line missing:\n%s", content)
	}
}

func TestExport_UnknownMaterial(t *testing.T) {
	svc := testService(t)
	_, err := svc.Export("Unobtainium", "json")
	if !errors.Is(err, domain.ErrMaterialNotFound) {
		t.Errorf("error = %v, want ErrMaterialNotFound", err)
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	svc := testService(t)
	_, err := svc.Export("Aluminum 6061-T6", "xml")
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}
