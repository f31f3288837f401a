package phi

// FieldConfig maps a HealthPrep table to the column names that are stored
// encrypted at rest via PHIEncryptor, rather than as plaintext. This is the
// authoritative inventory that schema migrations and DESIGN.md's grounding
// ledger should match against when a new table gains a PHI-bearing column.
type FieldConfig struct {
	// Table is the Postgres table name.
	Table string
	// Columns lists the *_enc columns on that table.
	Columns []string
}

// DefaultFields returns the PHI field configuration for every HealthPrep
// table that carries a HIPAA Safe Harbor identifier (45 CFR 164.514(b)(2))
// or an EHR credential as sensitive as PHI:
//
//   - patient: name fields, the only direct identifiers HealthPrep stores
//     outside of MRN (MRN itself is left plaintext since it is the lookup
//     key joins and EMR sync run against).
//   - document: the OCR'd, redacted text of an uploaded clinical document.
//     Redaction runs before encryption (document.Ingester), but residual
//     PHI a redaction pass misses is still covered by encryption at rest.
//   - provider: the OAuth2 access/refresh tokens an organization's EHR
//     connection depends on. Not PHI in the Safe Harbor sense, but treated
//     identically because a leaked token grants the same FHIR read access
//     PHI encryption is meant to contain.
//   - organization: the Epic client secret, same rationale as provider tokens.
func DefaultFields() []FieldConfig {
	return []FieldConfig{
		{
			Table:   "patient",
			Columns: []string{"first_name_enc", "last_name_enc"},
		},
		{
			Table:   "document",
			Columns: []string{"ocr_text_enc"},
		},
		{
			Table:   "provider",
			Columns: []string{"access_token_enc", "refresh_token_enc"},
		},
		{
			Table:   "organization",
			Columns: []string{"epic_client_secret_enc"},
		},
	}
}

// FieldPaths returns a flat set of "<table>.<column>" strings for fast
// look-up. Example key: "patient.first_name_enc".
func FieldPaths() map[string]bool {
	configs := DefaultFields()
	paths := make(map[string]bool, 16)
	for _, c := range configs {
		for _, col := range c.Columns {
			paths[c.Table+"."+col] = true
		}
	}
	return paths
}
