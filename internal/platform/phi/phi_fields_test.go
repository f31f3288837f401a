package phi

import (
	"testing"
)

func TestDefaultFields_CoversExpectedTables(t *testing.T) {
	configs := DefaultFields()

	expected := map[string]bool{
		"patient":      false,
		"document":     false,
		"provider":     false,
		"organization": false,
	}

	for _, c := range configs {
		if _, ok := expected[c.Table]; ok {
			expected[c.Table] = true
		}
	}

	for table, found := range expected {
		if !found {
			t.Errorf("expected PHI config for table %q but it was missing", table)
		}
	}
}

func TestDefaultFields_PatientColumns(t *testing.T) {
	configs := DefaultFields()

	var cfg *FieldConfig
	for i := range configs {
		if configs[i].Table == "patient" {
			cfg = &configs[i]
			break
		}
	}

	if cfg == nil {
		t.Fatal("patient PHI config not found")
	}

	requiredColumns := []string{"first_name_enc", "last_name_enc"}

	colSet := make(map[string]bool, len(cfg.Columns))
	for _, c := range cfg.Columns {
		colSet[c] = true
	}

	for _, rc := range requiredColumns {
		if !colSet[rc] {
			t.Errorf("patient config missing required PHI column %q", rc)
		}
	}
}

func TestDefaultFields_DocumentColumns(t *testing.T) {
	configs := DefaultFields()

	var cfg *FieldConfig
	for i := range configs {
		if configs[i].Table == "document" {
			cfg = &configs[i]
			break
		}
	}

	if cfg == nil {
		t.Fatal("document PHI config not found")
	}

	colSet := make(map[string]bool, len(cfg.Columns))
	for _, c := range cfg.Columns {
		colSet[c] = true
	}

	if !colSet["ocr_text_enc"] {
		t.Error("document config missing required PHI column \"ocr_text_enc\"")
	}
}

func TestDefaultFields_ProviderColumns(t *testing.T) {
	configs := DefaultFields()

	var cfg *FieldConfig
	for i := range configs {
		if configs[i].Table == "provider" {
			cfg = &configs[i]
			break
		}
	}

	if cfg == nil {
		t.Fatal("provider PHI config not found")
	}

	requiredColumns := []string{"access_token_enc", "refresh_token_enc"}

	colSet := make(map[string]bool, len(cfg.Columns))
	for _, c := range cfg.Columns {
		colSet[c] = true
	}

	for _, rc := range requiredColumns {
		if !colSet[rc] {
			t.Errorf("provider config missing required PHI column %q", rc)
		}
	}
}

func TestFieldPaths(t *testing.T) {
	paths := FieldPaths()

	expectedPaths := []string{
		"patient.first_name_enc",
		"patient.last_name_enc",
		"document.ocr_text_enc",
		"provider.access_token_enc",
		"provider.refresh_token_enc",
		"organization.epic_client_secret_enc",
	}

	for _, p := range expectedPaths {
		if !paths[p] {
			t.Errorf("FieldPaths() missing expected path %q", p)
		}
	}

	// Verify total count matches expectations (no unexpected extras).
	if len(paths) != len(expectedPaths) {
		t.Errorf("FieldPaths() has %d entries, expected %d", len(paths), len(expectedPaths))
	}
}

func TestDefaultFields_AllHaveNonEmptyColumns(t *testing.T) {
	for _, cfg := range DefaultFields() {
		if cfg.Table == "" {
			t.Error("found FieldConfig with empty Table")
		}
		if len(cfg.Columns) == 0 {
			t.Errorf("FieldConfig for %q has no columns", cfg.Table)
		}
	}
}
