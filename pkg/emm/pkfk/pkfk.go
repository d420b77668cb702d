// Package pkfk implements the PKFK EMM scheme: a per-table scheme
// with no separate EMM tables. Each encrypted table embeds its own
// join tokens (pfk_*/fpk_* columns, one pair per declared FK)
// alongside per-column filter tokens (val_*/dep_val_*) and AEAD cell
// ciphertexts (enc_*), assembled column-by-column instead of through a
// standalone join EMM table.
package pkfk

import (
	"sort"
	"strconv"

	"rsse-builder/pkg/builderr"
	"rsse-builder/pkg/cryptoprim"
	"rsse-builder/pkg/emm"
	"rsse-builder/pkg/predicate"
	"rsse-builder/pkg/rowenc"
	"rsse-builder/pkg/schema"
	"rsse-builder/pkg/store"
)

// rowCells collects the embedded column values for every row of one
// table, keyed by RID, as they accumulate across the forward/reverse
// join passes and the per-column filter/AEAD passes.
type rowCells map[uint64]map[string][]byte

func parseKeyValue(lexeme string) (uint64, error) {
	n, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return 0, builderr.Data("pkfk: foreign key value %q is not an integer", lexeme)
	}
	return uint64(n), nil
}

// BuildTable assembles one declared table's full PKFK-encrypted row
// set: the RID ciphertext, forward/reverse join columns for every
// outgoing FK, and val/dep_val/enc columns for every non-key column.
// rows must already carry the table's pk_long RID; outgoingFKs is the
// subset of the schema's FKs whose Table equals table.Name. The third
// return value lists the columns a query processor probes by
// equality — every pfk_/fpk_/val_/dep_val_ column, in the same order
// they were appended — so a caller can request a tree index on
// exactly those columns and skip enc_rid/enc_col, which are only ever
// read back whole.
func BuildTable(master *cryptoprim.MasterKey, table *schema.Table, outgoingFKs []schema.ForeignKey, rows []emm.RowWithRID) (store.DynamicTable, [][][]byte, []string, error) {
	cellKey, err := rowenc.CellDataKey(master)
	if err != nil {
		return store.DynamicTable{}, nil, nil, err
	}

	cells := make(rowCells, len(rows))
	order := make([]uint64, 0, len(rows))
	for _, r := range rows {
		cells[r.RID] = make(map[string][]byte)
		order = append(order, r.RID)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	colOrder := []string{"enc_rid"}
	var indexCols []string
	for _, r := range rows {
		encRID, err := cryptoprim.EncRID(master, r.RID)
		if err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
		cells[r.RID]["enc_rid"] = encRID[:]
	}

	for _, fk := range outgoingFKs {
		fwdID, err := rowenc.ColumnID(master, "pfk:"+fk.RefTable+":"+fk.Table+":"+fk.Column)
		if err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
		revID, err := rowenc.ColumnID(master, "fpk:"+fk.Table+":"+fk.RefTable+":"+fk.Column)
		if err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
		colOrder = append(colOrder, fwdID, revID)
		indexCols = append(indexCols, fwdID, revID)

		if err := buildForward(master, fk, rows, cells, fwdID); err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
		if err := buildReverse(master, fk, rows, cells, revID); err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
	}

	for _, col := range table.NonKeyColumns() {
		valID, err := rowenc.ColumnID(master, "val:"+table.Name+":"+col)
		if err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
		depID, err := rowenc.ColumnID(master, "dep_val:"+table.Name+":"+col)
		if err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
		encID, err := rowenc.ColumnID(master, col)
		if err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
		colOrder = append(colOrder, valID, depID, encID)
		indexCols = append(indexCols, valID, depID)

		if err := buildColumnTokens(master, cellKey, table.Name, col, rows, cells, valID, depID, encID); err != nil {
			return store.DynamicTable{}, nil, nil, err
		}
	}

	tableID, err := rowenc.ColumnID(master, "table:"+table.Name)
	if err != nil {
		return store.DynamicTable{}, nil, nil, err
	}

	out := make([][][]byte, 0, len(order))
	for _, rid := range order {
		row := make([][]byte, len(colOrder))
		for i, col := range colOrder {
			row[i] = cells[rid][col]
		}
		out = append(out, row)
	}

	return store.DynamicTable{Name: tableID, Columns: colOrder}, out, indexCols, nil
}

// buildForward emits pfk_col(other, this): for each distinct value of
// fk.Column among this table's rows, a dense PRF_S(counter_over_a)
// label per matching row, where S is keyed on the FK value itself —
// not on an RID — so a holder who knows the referenced PK value a can
// derive the same secondary trapdoor.
func buildForward(master *cryptoprim.MasterKey, fk schema.ForeignKey, rows []emm.RowWithRID, cells rowCells, colID string) error {
	pred := []byte(predicate.PKFKJoin(fk.RefTable, fk.Table))
	tp, err := cryptoprim.DeriveTrapdoor(master, pred)
	if err != nil {
		return err
	}
	values, buckets := emm.Bucket(rows, fk.Column)
	for _, v := range values {
		a, err := parseKeyValue(v)
		if err != nil {
			return err
		}
		s, err := cryptoprim.SecondaryTrapdoor(tp, a)
		if err != nil {
			return err
		}
		for k, rid := range buckets[v] {
			label, err := cryptoprim.Label(s, uint64(k))
			if err != nil {
				return err
			}
			cells[rid][colID] = label
		}
	}
	return nil
}

// buildReverse emits fpk_col(this, other): every row of this table
// XORs its own FK value against PRF(S', "v") with S' keyed on the
// row's own RID, so a holder of this row's RID can recover the
// referenced PK value without a separate join table.
func buildReverse(master *cryptoprim.MasterKey, fk schema.ForeignKey, rows []emm.RowWithRID, cells rowCells, colID string) error {
	pred := []byte(predicate.PKFKJoin(fk.Table, fk.RefTable))
	tp, err := cryptoprim.DeriveTrapdoor(master, pred)
	if err != nil {
		return err
	}
	for _, r := range rows {
		a, err := parseKeyValue(rowenc.Lexeme(r.Row[fk.Column]))
		if err != nil {
			return err
		}
		sPrime, err := cryptoprim.SecondaryTrapdoor(tp, r.RID)
		if err != nil {
			return err
		}
		value, err := cryptoprim.XorValue(sPrime, a, "v")
		if err != nil {
			return err
		}
		cells[r.RID][colID] = value
	}
	return nil
}

// buildColumnTokens emits one non-key column's val_col (dense
// PRF_{T_f1}(counter_over_c) label per matching row, T_f1 tagged with
// 1), dep_val_col (PRF_{T_f}(rid) per matching row, T_f untagged),
// and enc_col (the AEAD cell ciphertext).
func buildColumnTokens(master *cryptoprim.MasterKey, cellKey []byte, table, col string, rows []emm.RowWithRID, cells rowCells, valID, depID, encID string) error {
	values, buckets := emm.Bucket(rows, col)
	for _, v := range values {
		predV := []byte(predicate.Filter(table, col, v))
		tf1, err := cryptoprim.DeriveTaggedTrapdoor(master, predV, 1)
		if err != nil {
			return err
		}
		tf, err := cryptoprim.DeriveTrapdoor(master, predV)
		if err != nil {
			return err
		}
		for k, rid := range buckets[v] {
			valTok, err := cryptoprim.Label(tf1, uint64(k))
			if err != nil {
				return err
			}
			cells[rid][valID] = valTok

			depTok, err := cryptoprim.SecondaryTrapdoor(tf, rid)
			if err != nil {
				return err
			}
			cells[rid][depID] = depTok
		}
	}

	for _, r := range rows {
		ct, err := cryptoprim.EncCell(cellKey, []byte(rowenc.Lexeme(r.Row[col])))
		if err != nil {
			return err
		}
		cells[r.RID][encID] = ct
	}
	return nil
}
