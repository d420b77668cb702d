package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"rsse-builder/pkg/builderr"
)

// BatchSize caps a single INSERT statement's row count.
const BatchSize = 2000

// Store is the encrypted target connection: a GORM handle for the
// fixed-schema EMM tables and the underlying *sql.DB for raw DDL
// (CREATE TABLE, CREATE INDEX, ANALYZE) when the dynamic per-table
// column set can't be modeled as a static Go struct.
type Store struct {
	DB  *gorm.DB
	raw *sql.DB
}

// Open connects to the encrypted MySQL store, pings to fail fast, and
// migrates the fixed-schema EMM tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, builderr.Store(err, "store: gorm open failed")
	}
	raw, err := db.DB()
	if err != nil {
		return nil, builderr.Store(err, "store: underlying sql.DB unavailable")
	}
	if err := raw.Ping(); err != nil {
		return nil, builderr.Store(err, "store: ping failed")
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, builderr.Store(err, "store: automigrate failed")
	}
	return &Store{DB: db, raw: raw}, nil
}

// InsertFilterEntries batches FilterEntry rows into t_filter.
func (s *Store) InsertFilterEntries(rows []FilterEntry) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.DB.CreateInBatches(rows, BatchSize).Error; err != nil {
		return builderr.Store(err, "store: insert t_filter failed")
	}
	return nil
}

// InsertUncorrJoinEntries batches t_uncorr_join rows.
func (s *Store) InsertUncorrJoinEntries(rows []UncorrJoinEntry) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.DB.CreateInBatches(rows, BatchSize).Error; err != nil {
		return builderr.Store(err, "store: insert t_uncorr_join failed")
	}
	return nil
}

// InsertDepFilterEntries batches t_dep_filter rows.
func (s *Store) InsertDepFilterEntries(rows []DepFilterEntry) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.DB.CreateInBatches(rows, BatchSize).Error; err != nil {
		return builderr.Store(err, "store: insert t_dep_filter failed")
	}
	return nil
}

// InsertCorrJoinEntries batches t_corr_join rows.
func (s *Store) InsertCorrJoinEntries(rows []CorrJoinEntry) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.DB.CreateInBatches(rows, BatchSize).Error; err != nil {
		return builderr.Store(err, "store: insert t_corr_join failed")
	}
	return nil
}

// sqlIdent is a defensive identifier quoter: the builder controls
// every table/column name it generates (opaque PRF hex or a fixed
// literal), but anything headed into a raw DDL string still gets
// backtick-quoted.
func sqlIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}

// DynamicTable describes a per-table encrypted table whose column set
// is only known at build time: PKFK's embedded pfk_*/fpk_*/val_*
// columns, or SPX/CORR's per-table row-encryptor projection.
type DynamicTable struct {
	Name    string   // PRF_master(T) — opaque table name
	Columns []string // opaque column ids, in insertion order
}

// CreateDynamicTable issues a raw CREATE TABLE with one
// VARBINARY(255) column per declared name plus an auto-increment
// surrogate key.
func (s *Store) CreateDynamicTable(t DynamicTable) error {
	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, "`id` BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY")
	for _, c := range t.Columns {
		cols = append(cols, fmt.Sprintf("%s VARBINARY(255) NOT NULL", sqlIdent(c)))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(t.Name), strings.Join(cols, ", "))
	if _, err := s.raw.Exec(ddl); err != nil {
		return builderr.Store(err, "store: create table %s failed", t.Name)
	}
	return nil
}

// DropDynamicTable drops a per-table encrypted table, used by the
// overwrite-on-conflict build semantics — each run drops and
// recreates rather than attempting row-level upserts.
func (s *Store) DropDynamicTable(name string) error {
	if _, err := s.raw.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", sqlIdent(name))); err != nil {
		return builderr.Store(err, "store: drop table %s failed", name)
	}
	return nil
}

// InsertDynamicRows batches raw []byte rows into a dynamic table via
// a prepared statement, executed once per row inside a transaction.
func (s *Store) InsertDynamicRows(t DynamicTable, rows [][][]byte) error {
	if len(rows) == 0 {
		return nil
	}
	placeholders := make([]string, len(t.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = sqlIdent(c)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", sqlIdent(t.Name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	for start := 0; start < len(rows); start += BatchSize {
		end := min(start+BatchSize, len(rows))
		if err := s.insertChunk(insertSQL, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertChunk(insertSQL string, rows [][][]byte) error {
	tx, err := s.raw.Begin()
	if err != nil {
		return builderr.Store(err, "store: begin tx failed")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return builderr.Store(err, "store: prepare insert failed")
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			return builderr.Store(err, "store: exec insert failed")
		}
	}
	return builderr.Store(tx.Commit(), "store: commit failed")
}

// RequestHashIndex requests a hash index on an EMM label column.
// MySQL's InnoDB engine does not honor USING HASH and silently
// substitutes BTREE; the request is issued regardless — index
// creation is a request the backing store may satisfy however it
// sees fit.
func (s *Store) RequestHashIndex(table, column, indexName string) error {
	ddl := fmt.Sprintf("CREATE INDEX %s ON %s (%s) USING HASH", sqlIdent(indexName), sqlIdent(table), sqlIdent(column))
	if _, err := s.raw.Exec(ddl); err != nil {
		return builderr.Store(err, "store: create hash index %s failed", indexName)
	}
	return nil
}

// RequestTreeIndex requests a tree (BTREE) index on a PKFK index
// column, for range-free equality lookups.
func (s *Store) RequestTreeIndex(table, column, indexName string) error {
	ddl := fmt.Sprintf("CREATE INDEX %s ON %s (%s) USING BTREE", sqlIdent(indexName), sqlIdent(table), sqlIdent(column))
	if _, err := s.raw.Exec(ddl); err != nil {
		return builderr.Store(err, "store: create tree index %s failed", indexName)
	}
	return nil
}

// Analyze requests ANALYZE TABLE at the end of a build.
func (s *Store) Analyze(table string) error {
	if _, err := s.raw.Exec(fmt.Sprintf("ANALYZE TABLE %s", sqlIdent(table))); err != nil {
		return builderr.Store(err, "store: analyze %s failed", table)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.raw.Close()
}
