// Package rowenc implements the row encryptor: a per-table projection
// from a plaintext row + RID into an encrypted row of {enc_rid,
// enc_col_1, ..., enc_col_k}. Every column, key or not, is
// AEAD-encrypted; key columns are never emitted in the clear. The
// operation is embarrassingly parallel per row.
package rowenc

import (
	"encoding/hex"
	"fmt"

	"rsse-builder/pkg/builderr"
	"rsse-builder/pkg/cryptoprim"
	"rsse-builder/pkg/schema"
	"rsse-builder/pkg/source"
)

// CellDataKey derives the scheme-wide AES-128 key used for every cell
// AEAD encryption.
func CellDataKey(master *cryptoprim.MasterKey) ([]byte, error) {
	full, err := cryptoprim.Prf(master.Bytes(), []byte("cell-data-key"))
	if err != nil {
		return nil, err
	}
	return full[:16], nil
}

// ColumnID renders the opaque PRF_master(col_name) identifier a
// column is renamed to in the encrypted table, truncated to 32 hex
// characters so it stays within typical SQL identifier length limits
// while remaining effectively collision-free.
func ColumnID(master *cryptoprim.MasterKey, colName string) (string, error) {
	full, err := cryptoprim.Prf(master.Bytes(), []byte(colName))
	if err != nil {
		return "", err
	}
	return "c_" + hex.EncodeToString(full[:16]), nil
}

// EncRow is one output row of the row encryptor: the RID ciphertext
// plus one AEAD ciphertext per declared column, keyed by its opaque
// column id.
type EncRow struct {
	EncRID [cryptoprim.RIDCipherBlockLen]byte
	Cells  map[string][]byte // ColumnID(col) -> EncCell(cellKey, plaintext)
}

// lexeme renders a cell's plaintext value into the canonical byte
// form consumed by both AEAD encryption and predicate encoding, so a
// value and its filter predicate agree on representation.
func lexeme(v interface{}) []byte {
	return []byte(fmt.Sprintf("%v", v))
}

// Lexeme exposes the same canonical rendering for predicate builders.
func Lexeme(v interface{}) string {
	return fmt.Sprintf("%v", v)
}

// EncryptRow projects one plaintext row with its assigned RID into an
// EncRow. It never emits a column's plaintext, including PK columns.
func EncryptRow(master *cryptoprim.MasterKey, cellKey []byte, table *schema.Table, rid uint64, row source.Row) (*EncRow, error) {
	encRID, err := cryptoprim.EncRID(master, rid)
	if err != nil {
		return nil, err
	}
	out := &EncRow{EncRID: encRID, Cells: make(map[string][]byte, len(table.Columns))}
	for _, col := range table.Columns {
		v, ok := row[col]
		if !ok {
			return nil, builderr.Data("rowenc: table %q row missing column %q", table.Name, col)
		}
		id, err := ColumnID(master, col)
		if err != nil {
			return nil, err
		}
		ct, err := cryptoprim.EncCell(cellKey, lexeme(v))
		if err != nil {
			return nil, err
		}
		out.Cells[id] = ct
	}
	return out, nil
}
