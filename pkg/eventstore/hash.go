package eventstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// canonicalPayload re-encodes an event payload with map keys sorted, so the
// same logical payload always hashes to the same bytes regardless of the
// map iteration order Go's map type deliberately randomizes. This is a
// direct stdlib crypto/sha256 + encoding/json use — no ecosystem canonical-
// JSON library improves on a manual sorted-key walk for a payload this
// shallow, and the hash algorithm itself is fixed (SHA-256), not a design
// choice a library would help with.
func canonicalPayload(payload map[string]any) []byte {
	if payload == nil {
		return []byte("null")
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		kb, _ := json.Marshal(k)
		ordered = append(ordered, kb...)
		ordered = append(ordered, ':')
		vb, _ := json.Marshal(payload[k])
		ordered = append(ordered, vb...)
	}
	ordered = append(ordered, '}')
	return ordered
}

// ZeroHash is the wire-format seed for an incident's first event:
// prev_integrity_hash is 32 zero bytes, hex-encoded.
var ZeroHash = hex.EncodeToString(make([]byte, 32))

// ComputeHash derives the integrity hash for ev given the previous event's
// hash (ZeroHash for an incident's first event). The chain covers
// (prevHash, kind, canonical(payload), sequence_number), matching the
// integrity_hash contract in the data model.
func ComputeHash(prevHash string, ev incident.IncidentEvent) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte(ev.Kind))
	h.Write(canonicalPayload(ev.Payload))
	h.Write([]byte{
		byte(ev.SequenceNumber >> 24),
		byte(ev.SequenceNumber >> 16),
		byte(ev.SequenceNumber >> 8),
		byte(ev.SequenceNumber),
	})
	return hex.EncodeToString(h.Sum(nil))
}
