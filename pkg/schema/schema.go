// Package schema declares the table/PK/FK metadata the builder needs
// before it can run: the plaintext table set, each table's primary
// key, and the foreign-key edges between tables. Validation here is
// fatal-at-build-start: a missing or ambiguous PK, an unsupported
// compound-key arity, or an FK referencing a table whose PK was never
// declared, aborts before any store write.
package schema

import (
	"go.mongodb.org/mongo-driver/bson"

	"rsse-builder/pkg/builderr"
	"rsse-builder/pkg/ident"
)

// PrimaryKey is a table's declared key, atomic (one column) or
// compound (exactly two).
type PrimaryKey struct {
	Columns []string
}

// Arity classifies the key for ident.PKLong.
func (pk PrimaryKey) Arity() (ident.KeyArity, error) {
	switch len(pk.Columns) {
	case 1:
		return ident.Atomic, nil
	case 2:
		return ident.Compound, nil
	default:
		return 0, builderr.Config("primary key must have 1 or 2 columns, got %d", len(pk.Columns))
	}
}

// Table declares one plaintext table: its name, every column
// (including the PK columns, which NonKeyColumns leaves out for the
// EMM builders), and its primary key.
type Table struct {
	Name    string
	Columns []string
	PK      PrimaryKey
}

// NonKeyColumns returns Columns minus the PK columns, in declared order.
func (t Table) NonKeyColumns() []string {
	pkSet := make(map[string]struct{}, len(t.PK.Columns))
	for _, c := range t.PK.Columns {
		pkSet[c] = struct{}{}
	}
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if _, isPK := pkSet[c]; !isPK {
			out = append(out, c)
		}
	}
	return out
}

// ForeignKey declares this.Column -> RefTable.RefColumn.
type ForeignKey struct {
	Table      string
	Column     string
	RefTable   string
	RefColumn  string
}

// Schema is the full declared table set plus its FK edges. The PK/FK
// graph may be cyclic; the builder treats each FK independently and
// never traverses the graph.
type Schema struct {
	Tables map[string]*Table
	FKs    []ForeignKey
}

// New builds an empty Schema ready for AddTable/AddForeignKey.
func New() *Schema {
	return &Schema{Tables: make(map[string]*Table)}
}

// AddTable registers a table declaration.
func (s *Schema) AddTable(t *Table) {
	s.Tables[t.Name] = t
}

// AddForeignKey registers an FK edge.
func (s *Schema) AddForeignKey(fk ForeignKey) {
	s.FKs = append(s.FKs, fk)
}

// TableDoc is one table's declaration as stored in the plaintext
// source's own "schema" collection — a BSON document holding one
// declared table per document.
type TableDoc struct {
	Name       string   `bson:"name"`
	Columns    []string `bson:"columns"`
	PrimaryKey []string `bson:"primary_key"`
}

// ForeignKeyDoc is one FK edge as stored alongside the table docs.
type ForeignKeyDoc struct {
	Table     string `bson:"table"`
	Column    string `bson:"column"`
	RefTable  string `bson:"ref_table"`
	RefColumn string `bson:"ref_column"`
}

// LoadFromBSON builds a Schema from the decoded contents of a
// "schema" collection: one TableDoc per declared table plus the FK
// edges between them. Callers fetch tableDocs/fkDocs as bson.M
// documents (source.LoadSchemaDocs does this), then pass the decoded
// documents here.
func LoadFromBSON(tableDocs []bson.M, fkDocs []bson.M) (*Schema, error) {
	s := New()
	for _, doc := range tableDocs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, builderr.Data("schema: marshal table doc failed: %v", err)
		}
		var td TableDoc
		if err := bson.Unmarshal(raw, &td); err != nil {
			return nil, builderr.Data("schema: decode table doc failed: %v", err)
		}
		if td.Name == "" {
			return nil, builderr.Config("schema: table doc missing name")
		}
		s.AddTable(&Table{Name: td.Name, Columns: td.Columns, PK: PrimaryKey{Columns: td.PrimaryKey}})
	}
	for _, doc := range fkDocs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, builderr.Data("schema: marshal fk doc failed: %v", err)
		}
		var fd ForeignKeyDoc
		if err := bson.Unmarshal(raw, &fd); err != nil {
			return nil, builderr.Data("schema: decode fk doc failed: %v", err)
		}
		s.AddForeignKey(ForeignKey{Table: fd.Table, Column: fd.Column, RefTable: fd.RefTable, RefColumn: fd.RefColumn})
	}
	return s, nil
}

// Validate enforces the "exactly one PK" constraint and requires
// every FK to reference a table with a declared PK. Config errors are
// surfaced here, before any side effect.
func (s *Schema) Validate() error {
	for name, t := range s.Tables {
		if len(t.PK.Columns) == 0 {
			return builderr.Config("table %q declares no primary key", name)
		}
		if _, err := t.PK.Arity(); err != nil {
			return builderr.Config("table %q: %v", name, err)
		}
	}
	for _, fk := range s.FKs {
		if _, ok := s.Tables[fk.Table]; !ok {
			return builderr.Config("foreign key references undeclared table %q", fk.Table)
		}
		ref, ok := s.Tables[fk.RefTable]
		if !ok {
			return builderr.Config("foreign key %s.%s -> %s.%s references a table whose primary key was not declared", fk.Table, fk.Column, fk.RefTable, fk.RefColumn)
		}
		if len(ref.PK.Columns) == 0 {
			return builderr.Config("foreign key %s.%s -> %s.%s references a table whose primary key was not declared", fk.Table, fk.Column, fk.RefTable, fk.RefColumn)
		}
	}
	return nil
}
