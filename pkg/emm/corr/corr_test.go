package corr

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

func TestBuildDepFilterEMMOneTokenPerRow(t *testing.T) {
	master := randomMaster(t)
	rows := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"status": "open"}},
		{RID: 2, Row: source.Row{"status": "open"}},
		{RID: 3, Row: source.Row{"status": "closed"}},
	}
	entries, err := BuildDepFilterEMM(master, "orders", "status", rows)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	seen := make(map[string]bool)
	for _, e := range entries {
		s := string(e.Tok)
		require.False(t, seen[s], "dep filter tokens must not collide")
		seen[s] = true
	}
}

func TestBuildCorrJoinEMMBothOrientations(t *testing.T) {
	master := randomMaster(t)
	fk := schema.ForeignKey{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"}
	child := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"customer_id": int64(100)}},
	}
	parent := []emm.RowWithRID{
		{RID: 100, Row: source.Row{"id": int64(100)}},
	}
	entries, err := BuildCorrJoinEMM(master, fk, child, parent)
	require.NoError(t, err)
	// one matching pair in each orientation => 2 entries total
	require.Len(t, entries, 2)
}

func TestBuildCorrJoinEMMNoMatchesIsEmpty(t *testing.T) {
	master := randomMaster(t)
	fk := schema.ForeignKey{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"}
	child := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"customer_id": int64(999)}},
	}
	parent := []emm.RowWithRID{
		{RID: 100, Row: source.Row{"id": int64(100)}},
	}
	entries, err := BuildCorrJoinEMM(master, fk, child, parent)
	require.NoError(t, err)
	require.Empty(t, entries)
}
