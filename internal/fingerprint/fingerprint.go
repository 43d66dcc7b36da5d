// Package fingerprint computes the stable 64-bit request fingerprint
// (spec §3, §4.F) and provides the per-fingerprint single-flight table
// that guarantees at most one producer per fingerprint at a time.
package fingerprint

import (
	"encoding/binary"
	"sort"

	"github.com/dchest/siphash"

	"github.com/clickproxy/clickproxy/internal/chclient"
)

// siphash key: fixed and process-constant. Cross-build stability is
// explicitly not required (spec §9 open question iii); a fixed key keeps
// fingerprints deterministic within and across runs of the same build,
// which is all invariant 4 asks for.
var sipKey0, sipKey1 = uint64(0x636c69636b70726f), uint64(0x78792d66696e6770)

// Fingerprint is the 64-bit hash uniquely identifying a logically
// equivalent request.
type Fingerprint uint64

// Compute hashes the canonical fields of q: SQL text, query params,
// forwarded header subset, and compression tag, each length-prefixed so
// the encoding is unambiguous and injective over field boundaries.
func Compute(q chclient.ClickhouseQuery) Fingerprint {
	var buf []byte
	buf = appendString(buf, q.SQL)
	buf = appendKVs(buf, q.Params)
	buf = appendKVs(buf, q.ForwardHeaders)
	buf = appendString(buf, string(q.Compression))
	return Fingerprint(siphash.Hash(sipKey0, sipKey1, buf))
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

// appendKVs encodes an already-ordered KV slice. Params preserve client
// query-string order per spec; header subsets preserve insertion order.
// Sorting here would be incorrect (it would collapse the "ordered map"
// semantics spec §3 requires), so the slice order is hashed as-is.
func appendKVs(buf []byte, kvs []chclient.KV) []byte {
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(kvs)))
	buf = append(buf, countBuf[:]...)
	for _, kv := range kvs {
		buf = appendString(buf, kv.Key)
		buf = appendString(buf, kv.Value)
	}
	return buf
}

// sortedCopy returns a key-sorted copy of kvs, a canonical (order
// independent) KV view. Nothing in the module calls it; Compute hashes
// KVs in their given order.
func sortedCopy(kvs []chclient.KV) []chclient.KV {
	out := append([]chclient.KV(nil), kvs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
