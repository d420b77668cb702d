// Package cryptoprim implements an HMAC-based PRF for trapdoor and
// label derivation, AEAD cell encryption, a deterministic RID cipher,
// and the XOR payload encoding used by the PiBAS-style EMM schemes.
//
// Trapdoor and label derivation is plain HMAC-SHA256; EncRID is a
// dedicated 16-byte AES-ECB-of-one-block cipher; pair derivation uses
// HKDF-Expand (golang.org/x/crypto/hkdf) instead of naive tag-byte
// concatenation.
package cryptoprim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	"rsse-builder/pkg/builderr"
)

const (
	// MasterKeyLen is the required length of the master secret.
	MasterKeyLen = 32
	// RIDCipherBlockLen is the fixed width of an encrypted RID.
	RIDCipherBlockLen = 16
)

// MasterKey is process-wide read-only key material, loaded once at
// build start and Zeroize'd at teardown; it is never serialized
// alongside encrypted data.
type MasterKey struct {
	key []byte
}

// NewMasterKey validates and wraps raw key bytes.
func NewMasterKey(raw []byte) (*MasterKey, error) {
	if len(raw) != MasterKeyLen {
		return nil, builderr.Crypto(nil, "master key must be %d bytes, got %d", MasterKeyLen, len(raw))
	}
	k := make([]byte, MasterKeyLen)
	copy(k, raw)
	return &MasterKey{key: k}, nil
}

// Zeroize overwrites the key material in place. Call once the key is
// no longer needed; the MasterKey must not be used afterwards.
func (k *MasterKey) Zeroize() {
	for i := range k.key {
		k.key[i] = 0
	}
}

// Bytes exposes the raw key for direct PRF calls.
func (k *MasterKey) Bytes() []byte { return k.key }

// Prf computes HMAC-SHA256(key, msg) — the builder's sole keyed PRF,
// used both for trapdoor derivation (PRF_master(predicate[, j])) and
// for secondary trapdoors (PRF_T(rid[, j])).
func Prf(key, msg []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, builderr.Crypto(nil, "prf: key must not be empty")
	}
	h := hmac.New(sha256.New, key)
	if _, err := h.Write(msg); err != nil {
		return nil, builderr.Crypto(err, "prf: hmac write failed")
	}
	return h.Sum(nil), nil
}

// DeriveTrapdoor computes T = PRF_master(predicate), the single-key
// trapdoor used by the CORR dependent-filter EMM and by PKFK.
func DeriveTrapdoor(master *MasterKey, predicate []byte) ([]byte, error) {
	return Prf(master.Bytes(), predicate)
}

// DeriveTrapdoorPair computes the two independent sub-keys T_1, T_2
// (or S_1, S_2) a PiBAS-style bucket needs: a label key and a value
// key, both derived from one master trapdoor via HKDF-Expand so they
// are cryptographically independent without a second PRF call keyed
// directly off predicate bytes.
func DeriveTrapdoorPair(master *MasterKey, predicate []byte) (t1, t2 []byte, err error) {
	base, err := Prf(master.Bytes(), predicate)
	if err != nil {
		return nil, nil, err
	}
	kdf := hkdf.Expand(sha256.New, base, predicate)
	t1 = make([]byte, sha256.Size)
	t2 = make([]byte, sha256.Size)
	if _, err := io.ReadFull(kdf, t1); err != nil {
		return nil, nil, builderr.Crypto(err, "hkdf: derive t1 failed")
	}
	if _, err := io.ReadFull(kdf, t2); err != nil {
		return nil, nil, builderr.Crypto(err, "hkdf: derive t2 failed")
	}
	return t1, t2, nil
}

// DeriveTaggedTrapdoor computes PRF_master(predicate, tag) — the
// single-key, tag-concatenated derivation PKFK uses for val_col
// (tag=1) and dep_val_col (no tag, see DeriveTrapdoor), kept distinct
// from DeriveTrapdoorPair's HKDF-Expand construction because PKFK
// only ever needs one key per tag, not an independent label/value
// pair.
func DeriveTaggedTrapdoor(master *MasterKey, predicate []byte, tag byte) ([]byte, error) {
	msg := make([]byte, len(predicate)+1)
	copy(msg, predicate)
	msg[len(predicate)] = tag
	return Prf(master.Bytes(), msg)
}

// SecondaryTrapdoor computes S = PRF_T(rid[, j]) — a trapdoor keyed on
// a previously derived key T and an RID, used by CORR's correlated
// join EMM and PKFK's forward/reverse join columns.
func SecondaryTrapdoor(t []byte, rid uint64, j ...byte) ([]byte, error) {
	msg := make([]byte, 8+len(j))
	binary.BigEndian.PutUint64(msg, rid)
	copy(msg[8:], j)
	return Prf(t, msg)
}

// Label computes PRF_{key}(counter), the dense-bucket label used by
// every PiBAS-style EMM (t_filter, t_uncorr_join, t_corr_join, and
// PKFK's pfk_* columns).
func Label(key []byte, counter uint64) ([]byte, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)
	return Prf(key, buf[:])
}

// EncCell performs AEAD (AES-128-GCM) encryption of a single cell
// value, returning nonce‖ciphertext‖tag. Nonces are randomized — the
// EMM layer alone provides selectivity, so cell ciphertexts need not
// be deterministic.
func EncCell(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, builderr.Crypto(err, "enc_cell: aes cipher init failed")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, builderr.Crypto(err, "enc_cell: gcm init failed")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, builderr.Crypto(err, "enc_cell: nonce generation failed")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecCell reverses EncCell.
func DecCell(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, builderr.Crypto(err, "dec_cell: aes cipher init failed")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, builderr.Crypto(err, "dec_cell: gcm init failed")
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, builderr.Crypto(nil, "dec_cell: ciphertext shorter than nonce")
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}

// ridKey derives a fixed AES-128 key for the RID PRP from the master
// key, keeping the RID cipher independent of the cell AEAD key.
func ridKey(master *MasterKey) ([]byte, error) {
	full, err := Prf(master.Bytes(), []byte("rid-cipher"))
	if err != nil {
		return nil, err
	}
	return full[:16], nil
}

// EncRID is the deterministic RID PRP: a fixed 16-byte
// AES-ECB-of-one-block encryption of the 64-bit RID, scoped to exactly
// one block so the mapping is a genuine permutation on the RID's
// zero-padded block.
func EncRID(master *MasterKey, rid uint64) ([RIDCipherBlockLen]byte, error) {
	var out [RIDCipherBlockLen]byte
	key, err := ridKey(master)
	if err != nil {
		return out, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return out, builderr.Crypto(err, "enc_rid: aes cipher init failed")
	}
	var plain [RIDCipherBlockLen]byte
	binary.BigEndian.PutUint64(plain[8:], rid)
	block.Encrypt(out[:], plain[:])
	return out, nil
}

// DecRID reverses EncRID.
func DecRID(master *MasterKey, enc [RIDCipherBlockLen]byte) (uint64, error) {
	key, err := ridKey(master)
	if err != nil {
		return 0, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return 0, builderr.Crypto(err, "dec_rid: aes cipher init failed")
	}
	var plain [RIDCipherBlockLen]byte
	block.Decrypt(plain[:], enc[:])
	return binary.BigEndian.Uint64(plain[8:]), nil
}

// XorValue computes rid ⊕ PRF(key, tag), the one-time-pad-style EMM
// payload encryption used to hide an RID behind a counter-derived
// label.
func XorValue(key []byte, rid uint64, tag string) ([]byte, error) {
	pad, err := Prf(key, []byte(tag))
	if err != nil {
		return nil, err
	}
	var ridBytes [8]byte
	binary.BigEndian.PutUint64(ridBytes[:], rid)
	out := make([]byte, 8)
	for i := range out {
		out[i] = pad[i] ^ ridBytes[i]
	}
	return out, nil
}

// UnxorValue reverses XorValue, recovering the RID.
func UnxorValue(key []byte, value []byte, tag string) (uint64, error) {
	pad, err := Prf(key, []byte(tag))
	if err != nil {
		return 0, err
	}
	if len(value) != 8 {
		return 0, builderr.Crypto(nil, "unxor_value: value must be 8 bytes, got %d", len(value))
	}
	var ridBytes [8]byte
	for i := range ridBytes {
		ridBytes[i] = pad[i] ^ value[i]
	}
	return binary.BigEndian.Uint64(ridBytes[:]), nil
}
