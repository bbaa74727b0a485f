package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/helios-eng/helios/internal/domain"
)

// numericFields is the fixed set of properties coerced into Record.Attributes.
var numericFields = []string{
	"density",
	"tensile_strength_ultimate",
	"tensile_strength_yield",
	"modulus_of_elasticity",
	"thermal_conductivity",
	"melting_point",
	"cost_per_kg_usd",
	"sustainability_score",
}

// Normalize derives one immutable record per catalog entry, in document
// order. Missing or malformed fields never fail normalization: the rendered
// content substitutes "N/A" placeholders and non-numeric attribute values are
// silently skipped.
func Normalize(cat *Catalog) []domain.Record {
	records := make([]domain.Record, 0, cat.Len())
	for i, name := range cat.Names() {
		props, _ := cat.Get(name)
		records = append(records, normalizeEntry(name, props, i))
	}
	return records
}

func normalizeEntry(name string, props Properties, ordinal int) domain.Record {
	return domain.Record{
		Identity:    name,
		Category:    textValue(props, "category", "Unknown"),
		Content:     renderContent(name, props),
		Attributes:  coerceAttributes(props),
		SourceLabel: "Materials Database - " + name,
		Ordinal:     ordinal,
	}
}

// renderContent produces the datasheet text indexed by both search methods.
// The layout is deterministic and must stay byte-identical across rebuilds:
// the keyword index ranks on this exact text.
func renderContent(name string, props Properties) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Material: %s\n", name)
	fmt.Fprintf(&b, "Category: %s\n\n", textValue(props, "category", "Unknown"))
	fmt.Fprintf(&b, "Description: %s\n\n", textValue(props, "material_notes", "No description available"))

	b.WriteString("Physical Properties:\n")
	fmt.Fprintf(&b, "- Density: %s g/cc\n", propText(props, "density"))

	b.WriteString("\nMechanical Properties:\n")
	fmt.Fprintf(&b, "- Tensile Strength (Ultimate): %s MPa\n", propText(props, "tensile_strength_ultimate"))
	fmt.Fprintf(&b, "- Tensile Strength (Yield): %s MPa\n", propText(props, "tensile_strength_yield"))
	fmt.Fprintf(&b, "- Modulus of Elasticity: %s GPa\n", propText(props, "modulus_of_elasticity"))

	b.WriteString("\nThermal Properties:\n")
	fmt.Fprintf(&b, "- Thermal Conductivity: %s W/m-K\n", propText(props, "thermal_conductivity"))
	fmt.Fprintf(&b, "- Melting Point: %s °C\n", propText(props, "melting_point"))

	b.WriteString("\nEconomic Data:\n")
	fmt.Fprintf(&b, "- Cost: $%s per kg\n", propText(props, "cost_per_kg_usd"))

	b.WriteString("\nSustainability:\n")
	fmt.Fprintf(&b, "- Score: %s/10\n", propText(props, "sustainability_score"))
	fmt.Fprintf(&b, "- Notes: %s\n", textValue(props, "sustainability_notes", "No information available"))

	if apps := stringList(props["common_applications"]); apps != nil {
		b.WriteString("\nCommon Applications:\n")
		for _, app := range apps {
			fmt.Fprintf(&b, "- %s\n", app)
		}
	}

	return b.String()
}

// coerceAttributes keeps only the recognized numeric fields whose values
// parse as floats. Absent, empty, "N/A", null, and unparseable values are
// omitted rather than stored as zero.
func coerceAttributes(props Properties) map[string]float64 {
	attrs := make(map[string]float64)
	for _, field := range numericFields {
		v, ok := props[field]
		if !ok {
			continue
		}
		if f, ok := coerceFloat(v); ok {
			attrs[field] = f
		}
	}
	return attrs
}

func coerceFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" || s == "N/A" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// propText renders a property value for the datasheet, "N/A" when the value
// is absent, null, or empty.
func propText(props Properties, field string) string {
	v, ok := props[field]
	if !ok || v == nil {
		return "N/A"
	}
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return "N/A"
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

// textValue renders a free-text property with a fallback for absent, null,
// or empty values.
func textValue(props Properties, field, fallback string) string {
	v, ok := props[field]
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
