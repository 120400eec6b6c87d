package model

// ContainsID reports whether id is present in ids.
func ContainsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AppendUniqueID appends id unless it is already present. The second return
// value reports whether the list changed. Relationship lists are kept
// duplicate-free by routing every append through here.
func AppendUniqueID(ids []uint64, id uint64) ([]uint64, bool) {
	if ContainsID(ids, id) {
		return ids, false
	}
	return append(ids, id), true
}
