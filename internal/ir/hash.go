package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTopology = "noddymc/topology/v1"
	DomainHistory  = "noddymc/history/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TopologyKey computes the content address of a topology artifact.
func TopologyKey(data []byte) string {
	return hashWithDomain(DomainTopology, data)
}

// HistoryDigest computes the content address of a serialized history.
func HistoryDigest(data []byte) string {
	return hashWithDomain(DomainHistory, data)
}
