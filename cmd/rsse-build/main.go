// Command rsse-build is the encrypted index builder's CLI surface:
// `rsse-build build <variant> <data-mode>` scans the declared
// schema's tables from the plaintext source, attaches RIDs,
// builds the chosen EMM variant (spx, corr, or pkfk), and writes the
// result to the encrypted store when data-mode is build-enc; generate
// and load-plain are accepted as verbs but delegate to the external
// datagen/loading harness this builder never implements itself. The
// command-line surface follows cockroachdb-cockroach/pkg/cli's
// cobra.Command tree, scaled down to this builder's single subcommand.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"

	"rsse-builder/internal/config"
	"rsse-builder/pkg/buildrun"
	"rsse-builder/pkg/cryptoprim"
	"rsse-builder/pkg/emm"
	"rsse-builder/pkg/emm/corr"
	"rsse-builder/pkg/emm/pkfk"
	"rsse-builder/pkg/emm/spx"
	"rsse-builder/pkg/ident"
	"rsse-builder/pkg/rowenc"
	"rsse-builder/pkg/schema"
	"rsse-builder/pkg/source"
	"rsse-builder/pkg/store"
)

// sourceScanBatchSize is the cursor batch size for a single table scan.
const sourceScanBatchSize = 1000

func main() {
	root := &cobra.Command{
		Use:   "rsse-build",
		Short: "Build an encrypted searchable index from a plaintext relational source",
	}
	root.AddCommand(newBuildCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

// dataMode is the second positional argument of the build command:
// `build <variant> <data-mode>`. generate and load-plain name the
// bulk datagen harness and the plaintext-loading step — both external
// tools this builder never runs itself — so this CLI accepts the
// verbs but only build-enc does anything; the other two fail fast
// naming the tool that owns them.
type dataMode string

const (
	modeGenerate  dataMode = "generate"
	modeLoadPlain dataMode = "load-plain"
	modeBuildEnc  dataMode = "build-enc"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "build [spx|corr|pkfk] [generate|load-plain|build-enc]",
		Short:     "Build the encrypted index using the named EMM variant",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"spx", "corr", "pkfk", "generate", "load-plain", "build-enc"},
		RunE: func(cmd *cobra.Command, args []string) error {
			variant := buildrun.Variant(args[0])
			switch variant {
			case buildrun.SPX, buildrun.CORR, buildrun.PKFK:
			default:
				return fmt.Errorf("unknown variant %q (want spx, corr, or pkfk)", args[0])
			}

			mode := dataMode(args[1])
			switch mode {
			case modeGenerate, modeLoadPlain:
				return fmt.Errorf("data-mode %q is owned by the external data-generation/loading harness, not this builder", mode)
			case modeBuildEnc:
				return runBuild(cmd.Context(), variant)
			default:
				return fmt.Errorf("unknown data-mode %q (want generate, load-plain, or build-enc)", args[1])
			}
		},
	}
}

// runBuild executes one end-to-end build: load config and master key,
// validate the declared schema, scan every table from the plaintext
// source, assign RIDs, branch on variant, and write the result to the
// encrypted store, tracked through buildrun's state machine.
func runBuild(ctx context.Context, variant buildrun.Variant) error {
	run := buildrun.New(variant)
	cfg := config.Load()

	master, err := loadMasterKey(cfg.MasterKeyPath)
	if err != nil {
		return run.Abort(err)
	}
	defer master.Zeroize()

	src, err := source.Connect(ctx, cfg.PlainSourceURI, cfg.PlainSourceDB)
	if err != nil {
		return run.Abort(err)
	}
	defer src.Close(ctx)

	sch, err := loadSchema(ctx, src)
	if err != nil {
		return run.Abort(err)
	}
	if err := sch.Validate(); err != nil {
		return run.Abort(err)
	}

	enc, err := store.Open(cfg.EncStoreDSN)
	if err != nil {
		return run.Abort(err)
	}
	defer enc.Close()

	tableRows, err := scanAndAssignRIDs(ctx, src, sch)
	if err != nil {
		return run.Abort(err)
	}
	run.Advance(buildrun.DatagenScanned)
	run.Advance(buildrun.RIDAttached)

	run.Advance(buildrun.VariantBranch)
	var plan []indexRequest
	switch variant {
	case buildrun.SPX:
		err = buildSPX(master, sch, tableRows, enc)
		plan = spxIndexPlan()
	case buildrun.CORR:
		err = buildCORR(master, sch, tableRows, enc)
		plan = corrIndexPlan()
	case buildrun.PKFK:
		plan, err = buildPKFK(master, sch, tableRows, enc)
	}
	if err != nil {
		return run.Abort(err)
	}

	run.Advance(buildrun.IndicesRequested)
	if err := requestIndices(enc, plan); err != nil {
		return run.Abort(err)
	}

	run.Advance(buildrun.Analyzed)
	run.Advance(buildrun.Done)
	log.Printf("build %s done", run.ID)
	return nil
}

// loadMasterKey reads the raw master secret from disk, so the secret
// never lives in source.
func loadMasterKey(path string) (*cryptoprim.MasterKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading master key from %s: %w", path, err)
	}
	return cryptoprim.NewMasterKey(raw)
}

// scanAndAssignRIDs reads every declared table from the plaintext
// source and attaches a monotone per-table RID to each row. The set
// of tables to scan is deduplicated with mapset.Set[string] before
// scanning, since a table can appear as both a child and a parent
// across multiple declared FK edges.
func scanAndAssignRIDs(ctx context.Context, src *source.Source, sch *schema.Schema) (map[string][]emm.RowWithRID, error) {
	names := mapset.NewSet[string]()
	for name := range sch.Tables {
		names.Add(name)
	}

	out := make(map[string][]emm.RowWithRID, names.Cardinality())
	for name := range names.Iter() {
		assigner := ident.NewRIDAssigner()
		var rows []emm.RowWithRID
		err := src.ScanTable(ctx, name, sourceScanBatchSize, func(r source.Row) error {
			rows = append(rows, emm.RowWithRID{RID: assigner.Next(), Row: r})
			return nil
		})
		if err != nil {
			return nil, err
		}
		out[name] = rows
	}
	return out, nil
}

// buildEncRowTables projects every declared table's rows through the
// row encryptor and writes each table's result into its own dynamic
// encrypted table (name PRF_master(table), columns enc_rid plus one
// AEAD column per declared column) — SPX and CORR's encrypted row
// store, queried by RID rather than by predicate.
func buildEncRowTables(master *cryptoprim.MasterKey, sch *schema.Schema, tableRows map[string][]emm.RowWithRID, enc *store.Store) error {
	for name, table := range sch.Tables {
		if err := buildEncRowTable(master, table, tableRows[name], enc); err != nil {
			return err
		}
	}
	return nil
}

func buildEncRowTable(master *cryptoprim.MasterKey, table *schema.Table, rows []emm.RowWithRID, enc *store.Store) error {
	cellKey, err := rowenc.CellDataKey(master)
	if err != nil {
		return err
	}
	tableID, err := rowenc.ColumnID(master, "table:"+table.Name)
	if err != nil {
		return err
	}

	colIDs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		id, err := rowenc.ColumnID(master, col)
		if err != nil {
			return err
		}
		colIDs[i] = id
	}
	columns := append([]string{"enc_rid"}, colIDs...)

	sorted := make([]emm.RowWithRID, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RID < sorted[j].RID })

	out := make([][][]byte, 0, len(sorted))
	for _, r := range sorted {
		encRow, err := rowenc.EncryptRow(master, cellKey, table, r.RID, r.Row)
		if err != nil {
			return err
		}
		row := make([][]byte, len(columns))
		row[0] = encRow.EncRID[:]
		for i, id := range colIDs {
			row[i+1] = encRow.Cells[id]
		}
		out = append(out, row)
	}

	dyn := store.DynamicTable{Name: tableID, Columns: columns}
	if err := enc.DropDynamicTable(dyn.Name); err != nil {
		return err
	}
	if err := enc.CreateDynamicTable(dyn); err != nil {
		return err
	}
	return enc.InsertDynamicRows(dyn, out)
}

// buildSPX writes the encrypted row table for every declared table,
// then runs the filter and uncorrelated-join EMM builders over every
// declared table/column and FK edge, batching the result into the
// fixed-schema t_filter/t_uncorr_join tables.
func buildSPX(master *cryptoprim.MasterKey, sch *schema.Schema, tableRows map[string][]emm.RowWithRID, enc *store.Store) error {
	if err := buildEncRowTables(master, sch, tableRows, enc); err != nil {
		return err
	}
	for name, table := range sch.Tables {
		entries, err := spx.BuildTableFilterEMM(master, table, tableRows[name])
		if err != nil {
			return err
		}
		if err := enc.InsertFilterEntries(entries); err != nil {
			return err
		}
	}
	for _, fk := range sch.FKs {
		entries, err := spx.BuildUncorrJoinEMM(master, fk, tableRows[fk.Table], tableRows[fk.RefTable])
		if err != nil {
			return err
		}
		if err := enc.InsertUncorrJoinEntries(entries); err != nil {
			return err
		}
	}
	return nil
}

// buildCORR writes the encrypted row table for every declared table,
// then runs the SPX filter EMM (t_filter is shared between SPX and
// CORR verbatim), the dependent-filter EMM, and the two-orientation
// correlated-join EMM over every declared table/column and FK edge.
func buildCORR(master *cryptoprim.MasterKey, sch *schema.Schema, tableRows map[string][]emm.RowWithRID, enc *store.Store) error {
	if err := buildEncRowTables(master, sch, tableRows, enc); err != nil {
		return err
	}
	for name, table := range sch.Tables {
		filterEntries, err := spx.BuildTableFilterEMM(master, table, tableRows[name])
		if err != nil {
			return err
		}
		if err := enc.InsertFilterEntries(filterEntries); err != nil {
			return err
		}

		depEntries, err := corr.BuildTableDepFilterEMM(master, table, tableRows[name])
		if err != nil {
			return err
		}
		if err := enc.InsertDepFilterEntries(depEntries); err != nil {
			return err
		}
	}
	for _, fk := range sch.FKs {
		entries, err := corr.BuildCorrJoinEMM(master, fk, tableRows[fk.Table], tableRows[fk.RefTable])
		if err != nil {
			return err
		}
		if err := enc.InsertCorrJoinEntries(entries); err != nil {
			return err
		}
	}
	return nil
}

// buildPKFK runs the per-table PKFK builder over every declared table,
// dropping and recreating each table's dynamic encrypted counterpart
// so repeated builds stay idempotent under overwrite. It returns the
// tree-index plan over every table's pfk_/fpk_/val_/dep_val_ columns,
// since PKFK has no fixed-schema EMM tables of its own to index.
func buildPKFK(master *cryptoprim.MasterKey, sch *schema.Schema, tableRows map[string][]emm.RowWithRID, enc *store.Store) ([]indexRequest, error) {
	fksByTable := make(map[string][]schema.ForeignKey)
	for _, fk := range sch.FKs {
		fksByTable[fk.Table] = append(fksByTable[fk.Table], fk)
	}

	var plan []indexRequest
	for name, table := range sch.Tables {
		dyn, rows, indexCols, err := pkfk.BuildTable(master, table, fksByTable[name], tableRows[name])
		if err != nil {
			return nil, err
		}
		if err := enc.DropDynamicTable(dyn.Name); err != nil {
			return nil, err
		}
		if err := enc.CreateDynamicTable(dyn); err != nil {
			return nil, err
		}
		if err := enc.InsertDynamicRows(dyn, rows); err != nil {
			return nil, err
		}
		for i, col := range indexCols {
			plan = append(plan, indexRequest{
				table:  dyn.Name,
				column: col,
				name:   fmt.Sprintf("idx_%d", i),
				kind:   "tree",
			})
		}
	}
	return plan, nil
}

// indexRequest is one index to create against the encrypted store,
// plus the table it belongs to for the trailing per-table ANALYZE.
type indexRequest struct {
	table  string
	column string
	name   string
	kind   string // "hash" or "tree"
}

// spxIndexPlan requests a hash index on t_filter/t_uncorr_join's label
// columns — MySQL's InnoDB engine may substitute BTREE, per
// store.RequestHashIndex's doc comment.
func spxIndexPlan() []indexRequest {
	return []indexRequest{
		{table: "filter_entries", column: "label", name: "idx_filter_entries_label", kind: "hash"},
		{table: "uncorr_join_entries", column: "label", name: "idx_uncorr_join_entries_label", kind: "hash"},
	}
}

// corrIndexPlan requests a hash index on t_filter's label column plus
// t_dep_filter's token column and t_corr_join's label column.
func corrIndexPlan() []indexRequest {
	return []indexRequest{
		{table: "filter_entries", column: "label", name: "idx_filter_entries_label", kind: "hash"},
		{table: "dep_filter_entries", column: "tok", name: "idx_dep_filter_entries_tok", kind: "hash"},
		{table: "corr_join_entries", column: "label", name: "idx_corr_join_entries_label", kind: "hash"},
	}
}

// requestIndices issues every index in plan against the store, then
// ANALYZEs each distinct table touched exactly once. The plan is
// variant-specific: SPX/CORR index their fixed-schema EMM tables;
// PKFK indexes each dynamic per-table's join/filter columns instead,
// since PKFK never populates the fixed-schema tables at all.
func requestIndices(enc *store.Store, plan []indexRequest) error {
	tables := mapset.NewSet[string]()
	for _, r := range plan {
		var err error
		if r.kind == "hash" {
			err = enc.RequestHashIndex(r.table, r.column, r.name)
		} else {
			err = enc.RequestTreeIndex(r.table, r.column, r.name)
		}
		if err != nil {
			return err
		}
		tables.Add(r.table)
	}
	for t := range tables.Iter() {
		if err := enc.Analyze(t); err != nil {
			return err
		}
	}
	return nil
}

// loadSchema reads the declared table/PK/FK metadata from the
// plaintext source's own schema/foreign_keys collections. A fresh
// checkout with no schema collection populated yet falls back to
// demoSchema so the CLI still runs end-to-end out of the box.
func loadSchema(ctx context.Context, src *source.Source) (*schema.Schema, error) {
	tableDocs, fkDocs, err := src.LoadSchemaDocs(ctx)
	if err != nil {
		return nil, err
	}
	if len(tableDocs) == 0 {
		return demoSchema(), nil
	}
	return schema.LoadFromBSON(tableDocs, fkDocs)
}

// demoSchema declares the table/PK/FK shape this build targets when no
// schema collection has been populated yet. Schema declaration is
// build-time input the builder assumes rather than discovers.
func demoSchema() *schema.Schema {
	sch := schema.New()
	sch.AddTable(&schema.Table{
		Name:    "customers",
		Columns: []string{"id", "name", "city"},
		PK:      schema.PrimaryKey{Columns: []string{"id"}},
	})
	sch.AddTable(&schema.Table{
		Name:    "orders",
		Columns: []string{"id", "customer_id", "status", "amount"},
		PK:      schema.PrimaryKey{Columns: []string{"id"}},
	})
	sch.AddForeignKey(schema.ForeignKey{
		Table: "orders", Column: "customer_id",
		RefTable: "customers", RefColumn: "id",
	})
	return sch
}
