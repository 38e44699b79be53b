package main

import "time"

// TypeKind enumerates the portable column types understood by every dialect.
type TypeKind int

const (
	TypeUnknown TypeKind = iota
	TypeInteger
	TypeDecimal
	TypeDate
	TypeDateTime
	TypeText
	TypeVarChar
)

func (k TypeKind) String() string {
	switch k {
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeText:
		return "text"
	case TypeVarChar:
		return "varchar"
	default:
		return "unknown"
	}
}

// textual reports whether the kind stores character data. VarChar and Text
// are treated as one family when comparing against a live database.
func (k TypeKind) textual() bool {
	return k == TypeText || k == TypeVarChar
}

// NeutralType is a backend-independent column type.
type NeutralType struct {
	Kind      TypeKind
	Length    int // VarChar width
	Precision int // Decimal precision
	Scale     int // Decimal scale
}

func Integer() NeutralType           { return NeutralType{Kind: TypeInteger} }
func Decimal(p, s int) NeutralType   { return NeutralType{Kind: TypeDecimal, Precision: p, Scale: s} }
func Date() NeutralType              { return NeutralType{Kind: TypeDate} }
func DateTime() NeutralType          { return NeutralType{Kind: TypeDateTime} }
func Text() NeutralType              { return NeutralType{Kind: TypeText} }
func VarChar(n int) NeutralType      { return NeutralType{Kind: TypeVarChar, Length: n} }
func (t NeutralType) String() string { return t.Kind.String() }

// decimalDims returns precision and scale with defaults applied.
func (t NeutralType) decimalDims() (int, int) {
	p, s := t.Precision, t.Scale
	if p <= 0 {
		p, s = 18, 4
	}
	if s < 0 || s > p {
		s = 0
	}
	return p, s
}

// ColumnSpec declares a single column. Default is a SQL literal, already
// quoted for strings (e.g. "'Unknown'", "0"); empty means no default.
type ColumnSpec struct {
	Name     string
	Type     NeutralType
	Nullable bool
	Default  string
}

// KeyStrategy selects how a table's primary key is populated.
type KeyStrategy int

const (
	KeyAutoIncrement KeyStrategy = iota
	KeyExternal
)

// PrimaryKeySpec names the primary key column. For KeyAutoIncrement the
// column is generated by the dialect and must not appear in Columns.
type PrimaryKeySpec struct {
	Column   string
	Strategy KeyStrategy
}

// OnDeletePolicy is the referential action of a foreign key.
type OnDeletePolicy int

const (
	OnDeleteNoAction OnDeletePolicy = iota
	OnDeleteCascade
	OnDeleteSetNull
)

func (p OnDeletePolicy) clause() string {
	switch p {
	case OnDeleteCascade:
		return " ON DELETE CASCADE"
	case OnDeleteSetNull:
		return " ON DELETE SET NULL"
	default:
		return ""
	}
}

// ForeignKeySpec is a single-column foreign key.
type ForeignKeySpec struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  OnDeletePolicy
}

// TableSpec holds the full declared definition of a table.
type TableSpec struct {
	Name        string
	PrimaryKey  *PrimaryKeySpec
	Columns     []ColumnSpec
	ForeignKeys []ForeignKeySpec
}

// Column returns the named column and whether it was declared.
func (t TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// ColumnNames returns every physical column in declaration order, including
// an auto-increment key column.
func (t TableSpec) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns)+1)
	if t.PrimaryKey != nil && t.PrimaryKey.Strategy == KeyAutoIncrement {
		names = append(names, t.PrimaryKey.Column)
	}
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// StepKind identifies a migration action.
type StepKind int

const (
	StepAddColumn StepKind = iota
	StepRetypeColumn
)

func (k StepKind) String() string {
	if k == StepRetypeColumn {
		return "retype column"
	}
	return "add column"
}

// MigrationStep describes one reconciliation action. Steps are created by
// detection and discarded after the run.
type MigrationStep struct {
	Table     string
	Kind      StepKind
	Column    ColumnSpec
	Transform ValueTransform // RetypeColumn only
}

// DataSourceRecord is a row of the data_sources table.
type DataSourceRecord struct {
	ID               string
	Name             string
	Kind             BackendKind
	ConnectionString string
	Enabled          bool
	IsDefault        bool
	Status           string
	LastTestedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
