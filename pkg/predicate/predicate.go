// Package predicate builds canonical predicate strings for filter and
// join trapdoor derivation. These strings are pure client-side values
// — never sent to the server — consumed only to derive trapdoors. The
// `~` separator is reserved; callers must ensure table/column/value
// lexemes never contain it.
package predicate

import "fmt"

const sep = "~"

// Qualified renders "table.attr" for use inside a join predicate.
func Qualified(table, attr string) string {
	return table + "." + attr
}

// Filter renders "filter~<table>~<attr>~<value-lexeme>".
func Filter(table, attr, valueLexeme string) string {
	return fmt.Sprintf("filter%s%s%s%s%s%s", sep, table, sep, attr, sep, valueLexeme)
}

// CorrJoin renders "corrjoin~<left_table>.<left_attr>~<right_table>.<right_attr>"
// for one fixed orientation (L, R) — the caller chooses orientation;
// a correlated join needs both (a, a_ref) and (a_ref, a) emitted.
func CorrJoin(leftTable, leftAttr, rightTable, rightAttr string) string {
	return fmt.Sprintf("corrjoin%s%s%s%s", sep, Qualified(leftTable, leftAttr), sep, Qualified(rightTable, rightAttr))
}

// UncorrJoin renders the uncorrelated-join predicate for an FK pair,
// choosing the lexicographically smaller qualified name as the left
// side so the same predicate string is produced regardless of which
// side of the FK declaration the caller started from.
func UncorrJoin(tableA, attrA, tableB, attrB string) string {
	qa, qb := Qualified(tableA, attrA), Qualified(tableB, attrB)
	left, right := qa, qb
	if qb < qa {
		left, right = qb, qa
	}
	return fmt.Sprintf("uncorrjoin%s%s%s%s", sep, left, sep, right)
}

// PKFKJoin renders "pkfk~<primary_table>~<foreign_table>".
func PKFKJoin(primaryTable, foreignTable string) string {
	return fmt.Sprintf("pkfk%s%s%s%s", sep, primaryTable, sep, foreignTable)
}
