package engine

import "strings"

// Dialect holds the control statements an engine understands. Transaction
// control and schema switching are ordinary SQL issued through a statement.
type Dialect struct {
	Name     string
	Begin    string
	Commit   string
	Rollback string

	// CurrentSchema is a query returning the current schema as a single cell.
	CurrentSchema string

	// SwitchSchema renders the statement selecting a schema.
	// Nil when the engine has no schemas to switch.
	SwitchSchema func(name string) string
}

// SetSchemaSQL renders the schema-switch statement for name.
func (d *Dialect) SetSchemaSQL(name string) (string, bool) {
	if d.SwitchSchema == nil {
		return "", false
	}
	return d.SwitchSchema(name), true
}

// QuoteIdent quotes an identifier with double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString quotes a string literal with single quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
