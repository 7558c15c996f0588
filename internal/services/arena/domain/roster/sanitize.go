package roster

// ReconcileResult reports how an externally sanitized roster was re-bound to
// the existing pool: which entries matched a pool member, which arrived with
// no pool backing, and which pool members the sanitized roster dropped.
type ReconcileResult struct {
	Roster     Roster
	Reconciled Roster
	Inserted   Roster
	Removed    Roster
}

// ApplySanitized re-binds an externally sanitized roster (for example one
// with duplicates removed upstream) to members of the existing pool.
//
// Binding preference per sanitized entry: matching SlotID, then OwnerID,
// then SlotIndex, then the first still-unbound pool member. A bound entry
// carries the pool member's data under the sanitized entry's slot position;
// an unbound entry is kept verbatim. No data is fabricated that is not
// present in either source.
func ApplySanitized(sanitized []SlotAssignment, pool Roster) ReconcileResult {
	cleaned := Normalize(sanitized)
	used := make([]bool, len(pool))

	find := func(entry SlotAssignment) int {
		if entry.SlotID != "" {
			for i, member := range pool {
				if !used[i] && member.SlotID == entry.SlotID {
					return i
				}
			}
		}
		if entry.OwnerID != "" {
			for i, member := range pool {
				if !used[i] && member.OwnerID == entry.OwnerID {
					return i
				}
			}
		}
		for i, member := range pool {
			if !used[i] && member.SlotIndex == entry.SlotIndex {
				return i
			}
		}
		for i := range pool {
			if !used[i] {
				return i
			}
		}
		return -1
	}

	var result ReconcileResult
	merged := make([]SlotAssignment, 0, len(cleaned))
	for _, entry := range cleaned {
		i := find(entry)
		if i < 0 {
			result.Inserted = append(result.Inserted, entry)
			merged = append(merged, entry)
			continue
		}
		used[i] = true
		bound := pool[i]
		bound.SlotIndex = entry.SlotIndex
		if entry.SlotID != "" {
			bound.SlotID = entry.SlotID
		}
		if entry.Role != "" {
			bound.Role = entry.Role
		}
		result.Reconciled = append(result.Reconciled, bound)
		merged = append(merged, bound)
	}

	for i, member := range pool {
		if !used[i] {
			result.Removed = append(result.Removed, member)
		}
	}

	result.Roster = Normalize(merged)
	return result
}
