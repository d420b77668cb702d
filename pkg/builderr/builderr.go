// Package builderr defines the error kinds the index builder can
// raise. ConfigError is raised by schema validation before any store
// write. DataError is raised when a source row is decoded or encoded
// (a missing column, a non-integer PKFK foreign key), which can happen
// after earlier tables have already been written. CryptoError and
// StoreError are fatal mid-build. Callers distinguish kinds with
// errors.Is against the sentinel Kind values.
package builderr

import (
	"github.com/cockroachdb/errors"
)

// sentinel markers so errors.Is can test a wrapped error's kind.
var (
	sentinelConfig = errors.New("ConfigError")
	sentinelCrypto = errors.New("CryptoError")
	sentinelStore  = errors.New("StoreError")
	sentinelData   = errors.New("DataError")
)

// Config wraps err as a ConfigError — missing/ambiguous PK declaration,
// unsupported compound-key arity, or similar build-time misconfiguration.
func Config(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), sentinelConfig)
}

// Crypto wraps err as a CryptoError — invalid key material or a
// primitive failure. Crypto errors are always fatal. err may be nil,
// in which case Crypto behaves like Config/Data and constructs a
// fresh error from format/args.
func Crypto(err error, format string, args ...interface{}) error {
	if err == nil {
		return errors.Mark(errors.Newf(format, args...), sentinelCrypto)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), sentinelCrypto)
}

// Store wraps err as a StoreError — connect, write, or index-creation
// failure against the backing relational store. Store returns nil
// when err is nil, so call sites can pass a trailing operation's
// result straight through (e.g. `return builderr.Store(tx.Commit(), ...)`).
func Store(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), sentinelStore)
}

// Data wraps err as a DataError — a source column is missing or fails
// a type cast.
func Data(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), sentinelData)
}

// IsConfig reports whether err (or any error it wraps) is a ConfigError.
func IsConfig(err error) bool { return errors.Is(err, sentinelConfig) }

// IsCrypto reports whether err (or any error it wraps) is a CryptoError.
func IsCrypto(err error) bool { return errors.Is(err, sentinelCrypto) }

// IsStore reports whether err (or any error it wraps) is a StoreError.
func IsStore(err error) bool { return errors.Is(err, sentinelStore) }

// IsData reports whether err (or any error it wraps) is a DataError.
func IsData(err error) bool { return errors.Is(err, sentinelData) }
