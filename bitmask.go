package sponge

// keyMask records which context keys of one registry have a value.
// Key ids are dense and below MaxContextKeys, so four words cover them.
type keyMask [MaxContextKeys / 64]uint64

// maskOf returns the mask of keys, or false if any key is nil.
func maskOf(keys ...*ContextKey) (keyMask, bool) {
	var m keyMask
	for _, k := range keys {
		if k == nil {
			return keyMask{}, false
		}
		m.add(k)
	}
	return m, true
}

func (m *keyMask) add(k *ContextKey) {
	m[k.id>>6] |= 1 << (k.id & 63)
}

// mayHave reports whether a key with the id of k was added. Keys of another
// registry may share the id, so a hit must still be confirmed.
func (m *keyMask) mayHave(k *ContextKey) bool {
	return m[k.id>>6]&(1<<(k.id&63)) != 0
}

// covers reports whether every id in other is also in m.
func (m *keyMask) covers(other keyMask) bool {
	for i := range m {
		if m[i]&other[i] != other[i] {
			return false
		}
	}
	return true
}

func (m *keyMask) empty() bool {
	return *m == (keyMask{})
}
