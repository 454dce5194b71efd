// Package model holds the data shapes threaded between every component of the
// query intelligence core: schema snapshots, the agent's mutable state,
// sessions, pool identities, and the external request/response envelopes.
package model

import "time"

// DatabaseType identifies one of the four supported dialects.
type DatabaseType string

const (
	Postgres DatabaseType = "postgresql"
	MySQL    DatabaseType = "mysql"
	Oracle   DatabaseType = "oracle"
	SQLite   DatabaseType = "sqlite"
)

// ColumnDescriptor describes one column of a table or view.
type ColumnDescriptor struct {
	Name       string  `json:"name"`
	DataType   string  `json:"data_type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key"`
	Unique     bool    `json:"unique"`
}

// ForeignKey describes one outgoing reference from a table's column.
type ForeignKey struct {
	Column           string  `json:"column"`
	ReferencesTable  string  `json:"references_table"`
	ReferencesColumn string  `json:"references_column"`
	OnDelete         *string `json:"on_delete,omitempty"`
}

// TableDescriptor describes one table, keyed by its schema-qualified FullName.
type TableDescriptor struct {
	SchemaName  string                     `json:"schema_name"`
	TableName   string                     `json:"table_name"`
	FullName    string                     `json:"full_name"`
	Columns     []ColumnDescriptor         `json:"columns"`
	ForeignKeys []ForeignKey               `json:"foreign_keys,omitempty"`
	SampleRows  []map[string]interface{}   `json:"sample_rows,omitempty"`
	RowCount    *int64                     `json:"row_count,omitempty"`
	Indexes     []string                   `json:"indexes,omitempty"`
}

// ViewDescriptor describes one database view.
type ViewDescriptor struct {
	SchemaName string             `json:"schema_name"`
	ViewName   string             `json:"view_name"`
	FullName   string             `json:"full_name"`
	Definition string             `json:"definition,omitempty"`
	Columns    []ColumnDescriptor `json:"columns"`
}

// SchemaSnapshot is a versioned description of one database at a point in time.
//
// Tables is the transport-edge list form (ordered, as received from an
// adapter or a caller). TablesByName is the canonical internal map form,
// keyed by TableDescriptor.FullName, produced by Normalize. Both forms
// describing the same set of tables must normalize identically.
type SchemaSnapshot struct {
	DatabaseName string               `json:"database_name"`
	DatabaseType DatabaseType         `json:"database_type"`
	CapturedAt   time.Time            `json:"captured_at"`
	Tables       []TableDescriptor    `json:"tables"`
	Views        []ViewDescriptor     `json:"views,omitempty"`

	// TablesByName is populated by Normalize and is the form every
	// schema-aware component (context builder, error analyzer, hints
	// provider) must read from.
	TablesByName map[string]TableDescriptor `json:"-"`
}

// Normalize canonicalizes Tables into TablesByName, keyed by FullName. It is
// idempotent and safe to call repeatedly; later entries with a duplicate
// FullName overwrite earlier ones, matching a map's natural semantics when
// ingesting a list that may itself already be de-duplicated upstream.
func (s *SchemaSnapshot) Normalize() {
	if s.TablesByName == nil {
		s.TablesByName = make(map[string]TableDescriptor, len(s.Tables))
	}
	for _, t := range s.Tables {
		s.TablesByName[t.FullName] = t
	}
}

// TableNames returns the sorted-by-appearance list of full table names known
// to the snapshot, preferring the canonical map once normalized.
func (s *SchemaSnapshot) TableNames() []string {
	if len(s.TablesByName) > 0 {
		names := make([]string, 0, len(s.TablesByName))
		for _, t := range s.Tables {
			if _, ok := s.TablesByName[t.FullName]; ok {
				names = append(names, t.FullName)
			}
		}
		if len(names) == len(s.TablesByName) {
			return names
		}
		names = names[:0]
		for name := range s.TablesByName {
			names = append(names, name)
		}
		return names
	}
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.FullName)
	}
	return names
}

// Table looks up a table by full name in the canonical map, normalizing
// first if needed.
func (s *SchemaSnapshot) Table(fullName string) (TableDescriptor, bool) {
	if len(s.TablesByName) == 0 {
		s.Normalize()
	}
	t, ok := s.TablesByName[fullName]
	return t, ok
}
