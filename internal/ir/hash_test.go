package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopologyKeyDeterminism(t *testing.T) {
	data := []byte("1 2\n2 3\n")
	assert.Equal(t, TopologyKey(data), TopologyKey(data))
	assert.Len(t, TopologyKey(data), 64)
}

func TestTopologyKeyChangesWithContent(t *testing.T) {
	assert.NotEqual(t, TopologyKey([]byte("1 2\n")), TopologyKey([]byte("1 3\n")))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte("Event #1 = STRATIGRAPHY")
	assert.NotEqual(t, TopologyKey(data), HistoryDigest(data), "Different domains must produce different hashes")
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// Without the separator "ab"+"c" and "a"+"bc" would hash alike.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))

	sum := sha256.Sum256([]byte("noddymc/topology/v1\x00x"))
	assert.Equal(t, hex.EncodeToString(sum[:]), TopologyKey([]byte("x")))
}

func TestEmptyInput(t *testing.T) {
	assert.Len(t, TopologyKey(nil), 64)
	assert.Equal(t, TopologyKey(nil), TopologyKey([]byte{}))
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "noddymc/topology/v1", DomainTopology)
	assert.Equal(t, "noddymc/history/v1", DomainHistory)
}

func TestHashHexEncoding(t *testing.T) {
	for _, c := range HistoryDigest([]byte("fold")) {
		valid := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		assert.True(t, valid, "Hash should only contain hex characters, got: %c", c)
	}
}
