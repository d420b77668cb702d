package pkfk

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"rsse-builder/pkg/cryptoprim"
	"rsse-builder/pkg/emm"
	"rsse-builder/pkg/rowenc"
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

func ordersTable() *schema.Table {
	return &schema.Table{
		Name:    "orders",
		Columns: []string{"id", "customer_id", "status"},
		PK:      schema.PrimaryKey{Columns: []string{"id"}},
	}
}

func TestBuildTableColumnCountAndRowCount(t *testing.T) {
	master := randomMaster(t)
	tbl := ordersTable()
	fks := []schema.ForeignKey{{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"}}
	rows := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"id": int64(1), "customer_id": int64(100), "status": "open"}},
		{RID: 2, Row: source.Row{"id": int64(2), "customer_id": int64(100), "status": "closed"}},
	}

	dyn, out, indexCols, err := BuildTable(master, tbl, fks, rows)
	require.NoError(t, err)

	// enc_rid + (pfk,fpk) for 1 FK + (val,dep_val,enc) * 2 non-key columns (customer_id, status)
	require.Len(t, dyn.Columns, 1+2+3*2)
	require.Len(t, out, len(rows))
	for _, row := range out {
		require.Len(t, row, len(dyn.Columns))
		for _, cell := range row {
			require.NotEmpty(t, cell)
		}
	}
	// pfk, fpk, and val, dep_val per non-key column are index columns; enc_rid and enc are not.
	require.Len(t, indexCols, 2+2*2)
}

func TestBuildTableIsDeterministic(t *testing.T) {
	master := randomMaster(t)
	tbl := ordersTable()
	fks := []schema.ForeignKey{{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"}}
	rows := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"id": int64(1), "customer_id": int64(100), "status": "open"}},
	}

	dyn1, out1, idx1, err := BuildTable(master, tbl, fks, rows)
	require.NoError(t, err)
	dyn2, out2, idx2, err := BuildTable(master, tbl, fks, rows)
	require.NoError(t, err)

	require.Equal(t, dyn1, dyn2)
	require.Equal(t, idx1, idx2)
	require.Len(t, out2, len(out1))

	// enc_rid and every token column are deterministic given the key and
	// RIDs; enc_* cells use randomized AEAD nonces, so those are compared
	// by their decrypted plaintext instead of their bytes.
	cellKey, err := rowenc.CellDataKey(master)
	require.NoError(t, err)
	tokenCols := map[string]bool{"enc_rid": true}
	for _, c := range idx1 {
		tokenCols[c] = true
	}
	for i := range out1 {
		for j, col := range dyn1.Columns {
			if tokenCols[col] {
				require.Equal(t, out1[i][j], out2[i][j])
				continue
			}
			p1, err := cryptoprim.DecCell(cellKey, out1[i][j])
			require.NoError(t, err)
			p2, err := cryptoprim.DecCell(cellKey, out2[i][j])
			require.NoError(t, err)
			require.Equal(t, p1, p2)
		}
	}
}

func TestBuildTableRejectsNonIntegerFK(t *testing.T) {
	master := randomMaster(t)
	tbl := ordersTable()
	fks := []schema.ForeignKey{{Table: "orders", Column: "customer_id", RefTable: "customers", RefColumn: "id"}}
	rows := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"id": int64(1), "customer_id": "not-a-number", "status": "open"}},
	}

	_, _, _, err := BuildTable(master, tbl, fks, rows)
	require.Error(t, err)
}

func TestBuildTableNoFKsStillEmitsValDepEnc(t *testing.T) {
	master := randomMaster(t)
	tbl := ordersTable()
	rows := []emm.RowWithRID{
		{RID: 1, Row: source.Row{"id": int64(1), "customer_id": int64(100), "status": "open"}},
	}

	dyn, out, indexCols, err := BuildTable(master, tbl, nil, rows)
	require.NoError(t, err)
	// enc_rid + (val,dep_val,enc) * 2 non-key columns (customer_id, status)
	require.Len(t, dyn.Columns, 1+3*2)
	require.Len(t, out, 1)
	// val, dep_val per non-key column; enc excluded.
	require.Len(t, indexCols, 2*2)
}
