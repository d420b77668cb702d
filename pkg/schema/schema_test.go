package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"rsse-builder/pkg/builderr"
)

func TestLoadFromBSONRoundTrip(t *testing.T) {
	tableDocs := []bson.M{
		{"name": "customers", "columns": bson.A{"id", "name"}, "primary_key": bson.A{"id"}},
		{"name": "orders", "columns": bson.A{"id", "customer_id", "status"}, "primary_key": bson.A{"id"}},
	}
	fkDocs := []bson.M{
		{"table": "orders", "column": "customer_id", "ref_table": "customers", "ref_column": "id"},
	}

	s, err := LoadFromBSON(tableDocs, fkDocs)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	require.Len(t, s.Tables, 2)
	require.Len(t, s.FKs, 1)
	require.Equal(t, []string{"id"}, s.Tables["customers"].PK.Columns)
}

func TestLoadFromBSONRejectsMissingName(t *testing.T) {
	tableDocs := []bson.M{{"columns": bson.A{"id"}, "primary_key": bson.A{"id"}}}
	_, err := LoadFromBSON(tableDocs, nil)
	require.Error(t, err)
}

func TestValidateRejectsMissingPK(t *testing.T) {
	s := New()
	s.AddTable(&Table{Name: "orders", Columns: []string{"id", "status"}})
	err := s.Validate()
	require.Error(t, err)
	require.True(t, builderr.IsConfig(err))
}

func TestValidateRejectsUnsupportedArity(t *testing.T) {
	s := New()
	s.AddTable(&Table{
		Name:    "orders",
		Columns: []string{"a", "b", "c"},
		PK:      PrimaryKey{Columns: []string{"a", "b", "c"}},
	})
	err := s.Validate()
	require.Error(t, err)
}

func TestValidateRejectsUndeclaredFKTarget(t *testing.T) {
	s := New()
	s.AddTable(&Table{
		Name:    "orders",
		Columns: []string{"id", "customer_id"},
		PK:      PrimaryKey{Columns: []string{"id"}},
	})
	s.AddForeignKey(ForeignKey{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"})
	err := s.Validate()
	require.Error(t, err)
	require.True(t, builderr.IsConfig(err))
}

func TestValidateAccepts(t *testing.T) {
	s := New()
	s.AddTable(&Table{
		Name:    "customers",
		Columns: []string{"id", "name"},
		PK:      PrimaryKey{Columns: []string{"id"}},
	})
	s.AddTable(&Table{
		Name:    "orders",
		Columns: []string{"id", "customer_id", "status"},
		PK:      PrimaryKey{Columns: []string{"id"}},
	})
	s.AddForeignKey(ForeignKey{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"})
	require.NoError(t, s.Validate())
}

func TestNonKeyColumnsExcludesPK(t *testing.T) {
	tbl := Table{
		Name:    "orders",
		Columns: []string{"id", "customer_id", "status"},
		PK:      PrimaryKey{Columns: []string{"id"}},
	}
	require.Equal(t, []string{"customer_id", "status"}, tbl.NonKeyColumns())
}
