package cryptoprim

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomMasterKey(t *testing.T) *MasterKey {
	t.Helper()
	raw := make([]byte, MasterKeyLen)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	master, err := NewMasterKey(raw)
	require.NoError(t, err)
	return master
}

func TestNewMasterKeyRejectsWrongLength(t *testing.T) {
	_, err := NewMasterKey(make([]byte, 16))
	require.Error(t, err)
}

func TestPrfDeterministic(t *testing.T) {
	key := []byte("0123456789abcdef")
	msg := []byte("hello")

	a, err := Prf(key, msg)
	require.NoError(t, err)
	b, err := Prf(key, msg)
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := Prf(key, []byte("different"))
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestDeriveTrapdoorPairIndependence(t *testing.T) {
	master := randomMasterKey(t)
	t1, t2, err := DeriveTrapdoorPair(master, []byte("filter~orders~status~open"))
	require.NoError(t, err)
	require.NotEqual(t, t1, t2)

	t1Again, t2Again, err := DeriveTrapdoorPair(master, []byte("filter~orders~status~open"))
	require.NoError(t, err)
	require.Equal(t, t1, t1Again)
	require.Equal(t, t2, t2Again)
}

func TestEncDecCellRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	_, err := rand.Read(key)
	require.NoError(t, err)

	plaintext := []byte("open")
	sealed, err := EncCell(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, sealed)

	recovered, err := DecCell(key, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, recovered)
}

func TestEncCellIsRandomized(t *testing.T) {
	key := make([]byte, 16)
	_, err := rand.Read(key)
	require.NoError(t, err)

	a, err := EncCell(key, []byte("same value"))
	require.NoError(t, err)
	b, err := EncCell(key, []byte("same value"))
	require.NoError(t, err)
	require.False(t, bytes.Equal(a, b), "EncCell must not produce identical ciphertexts for identical plaintexts")
}

func TestEncDecRIDRoundTrip(t *testing.T) {
	master := randomMasterKey(t)
	for _, rid := range []uint64{0, 1, 42, 1 << 40} {
		enc, err := EncRID(master, rid)
		require.NoError(t, err)
		got, err := DecRID(master, enc)
		require.NoError(t, err)
		require.Equal(t, rid, got)
	}
}

func TestEncRIDIsDeterministic(t *testing.T) {
	master := randomMasterKey(t)
	a, err := EncRID(master, 7)
	require.NoError(t, err)
	b, err := EncRID(master, 7)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestXorValueRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	value, err := XorValue(key, 12345, "v")
	require.NoError(t, err)
	got, err := UnxorValue(key, value, "v")
	require.NoError(t, err)
	require.Equal(t, uint64(12345), got)
}

func TestXorValueTagSeparation(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	left, err := XorValue(key, 99, "l")
	require.NoError(t, err)
	right, err := XorValue(key, 99, "r")
	require.NoError(t, err)
	require.NotEqual(t, left, right)
}

func TestLabelDensePerCounter(t *testing.T) {
	key := []byte("some-secondary-trapdoor-material")
	seen := make(map[string]bool)
	for k := uint64(0); k < 10; k++ {
		label, err := Label(key, k)
		require.NoError(t, err)
		s := string(label)
		require.False(t, seen[s], "counter %d collided with a previous label", k)
		seen[s] = true
	}
}
