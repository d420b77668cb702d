package spx

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"rsse-builder/pkg/cryptoprim"
	"rsse-builder/pkg/emm"
	"rsse-builder/pkg/schema"
	"rsse-builder/pkg/source"
)

func randomMaster(t *testing.T) *cryptoprim.MasterKey {
	t.Helper()
	raw := make([]byte, cryptoprim.MasterKeyLen)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	m, err := cryptoprim.NewMasterKey(raw)
	require.NoError(t, err)
	return m
}

func TestBuildFilterEMMEntryCount(t *testing.T) {
	master := randomMaster(t)
	rows := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"status": "open"}},
		{RID: 2, Row: source.Row{"status": "open"}},
		{RID: 3, Row: source.Row{"status": "closed"}},
	}
	entries, err := BuildFilterEMM(master, "orders", "status", rows)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestBuildFilterEMMIsDeterministic(t *testing.T) {
	master := randomMaster(t)
	rows := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"status": "open"}},
		{RID: 2, Row: source.Row{"status": "open"}},
	}
	a, err := BuildFilterEMM(master, "orders", "status", rows)
	require.NoError(t, err)
	b, err := BuildFilterEMM(master, "orders", "status", rows)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestBuildTableFilterEMMSkipsKeyColumns(t *testing.T) {
	master := randomMaster(t)
	tbl := &schema.Table{
		Name:    "orders",
		Columns: []string{"id", "status"},
		PK:      schema.PrimaryKey{Columns: []string{"id"}},
	}
	rows := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"id": int64(1), "status": "open"}},
	}
	entries, err := BuildTableFilterEMM(master, tbl, rows)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestBuildUncorrJoinEMMMatchesEquiJoinCount(t *testing.T) {
	master := randomMaster(t)
	fk := schema.ForeignKey{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"}
	child := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"customer_id": int64(100)}},
		{RID: 2, Row: source.Row{"customer_id": int64(200)}},
	}
	parent := []emm.RowWithRID{
		{RID: 100, Row: source.Row{"id": int64(100)}},
		{RID: 200, Row: source.Row{"id": int64(200)}},
	}
	entries, err := BuildUncorrJoinEMM(master, fk, child, parent)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
