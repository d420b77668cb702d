// Package store is the encrypted target backing relational store:
// GORM-managed fixed-schema EMM tables plus a raw-SQL escape hatch for
// the per-table dynamic-column encrypted tables. It opens and pings the
// connection, AutoMigrates the fixed-schema tables, creates and drops
// the dynamic tables, emits batched inserts, and requests hash/tree
// indices and ANALYZE; it manages no other DDL.
package store

import "time"

// FilterEntry is one row of t_filter(label, value) — the PiBAS filter
// EMM, shared by SPX, CORR, and PKFK's equivalent embedded val_*
// columns. Label and Value are raw PRF/XOR output, not printable
// strings, so they're stored as VARBINARY via gorm's []byte mapping.
type FilterEntry struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Label     []byte `gorm:"type:varbinary(64);index:idx_filter_label,class:HASH"`
	Value     []byte `gorm:"type:varbinary(64)"`
	CreatedAt time.Time
}

// UncorrJoinEntry is one row of t_uncorr_join(label, value_left,
// value_right) — the uncorrelated-join EMM.
type UncorrJoinEntry struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Label       []byte `gorm:"type:varbinary(64);index:idx_uncorr_label,class:HASH"`
	ValueLeft   []byte `gorm:"type:varbinary(64)"`
	ValueRight  []byte `gorm:"type:varbinary(64)"`
	CreatedAt   time.Time
}

// DepFilterEntry is one row of t_dep_filter(tok) — the
// dependent-filter EMM, a bare token set probed by equality.
type DepFilterEntry struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Tok       []byte `gorm:"type:varbinary(64);index:idx_dep_filter_tok,class:HASH"`
	CreatedAt time.Time
}

// CorrJoinEntry is one row of t_corr_join(label, value) — the
// correlated-join EMM, one orientation per row.
type CorrJoinEntry struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Label     []byte `gorm:"type:varbinary(64);index:idx_corr_label,class:HASH"`
	Value     []byte `gorm:"type:varbinary(64)"`
	CreatedAt time.Time
}

// AllModels lists every fixed-schema model for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&FilterEntry{},
		&UncorrJoinEntry{},
		&DepFilterEntry{},
		&CorrJoinEntry{},
	}
}
