package checksum

// Unordered hashes a map so that the result does not depend on iteration
// order: each entry is hashed by a fresh hasher, the per-entry digests are
// combined with XOR, then the length and the combined value are written.
func Unordered[K comparable, V any](h *Hasher, m map[K]V, entry func(h *Hasher, k K, v V)) {
	var acc uint64
	for k, v := range m {
		eh := New()
		entry(eh, k, v)
		acc ^= eh.Sum64()
	}
	h.WriteLen(len(m))
	h.WriteUint64(acc)
}

// UnorderedSet is Unordered for sets.
func UnorderedSet[K comparable](h *Hasher, set map[K]struct{}, elem func(h *Hasher, k K)) {
	Unordered(h, set, func(eh *Hasher, k K, _ struct{}) {
		elem(eh, k)
	})
}
