package entity_detect

import (
	"slices"
	"sort"

	"github.com/turtacn/entigo/pkg/types/entity"
)

// nonOverlapping prunes the candidate pool to entities that do not share a
// byte, sorted by start offset.
//
// Candidates are visited longest first (ties by start).  An expected
// candidate evicts the unexpected entries it overlaps and then tries to put
// back every earlier candidate that no longer conflicts.  Two candidates
// with the identical span may both survive unless only the accepted one is
// expected.
func nonOverlapping(pool []entity.Entity, expected []string) []entity.Entity {
	sorted := append([]entity.Entity(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := sorted[i].Len(), sorted[j].Len()
		if li == lj {
			return sorted[i].Start < sorted[j].Start
		}
		return li > lj
	})

	isExpected := func(name string) bool { return slices.Contains(expected, name) }

	// accepted holds indices into sorted; index equality is identity.
	var accepted []int
	for i, cur := range sorted {
		curExpected := isExpected(cur.Entity)

		overlapping := false
		for _, k := range accepted {
			if sorted[k].Overlaps(cur) {
				overlapping = true
				break
			}
		}

		if overlapping {
			duplicate := -1
			for _, k := range accepted {
				if sorted[k].Start == cur.Start && sorted[k].End == cur.End {
					duplicate = k
					break
				}
			}
			if duplicate >= 0 {
				overlapping = !curExpected && isExpected(sorted[duplicate].Entity)
			}

			if curExpected {
				overlapping = false
				kept := accepted[:0:0]
				for _, k := range accepted {
					if !sorted[k].Overlaps(cur) {
						kept = append(kept, k)
						continue
					}
					if isExpected(sorted[k].Entity) {
						if duplicate < 0 {
							overlapping = true
						}
						kept = append(kept, k)
					}
				}
				accepted = kept

				for k := 0; k < i; k++ {
					putback := sorted[k]
					if putback.Overlaps(cur) {
						continue
					}
					conflict := false
					for _, a := range accepted {
						if a == k || sorted[a].Overlaps(putback) {
							conflict = true
							break
						}
					}
					if !conflict {
						accepted = append(accepted, k)
					}
				}
			}
		}

		if !overlapping {
			accepted = append(accepted, i)
		}
	}

	out := make([]entity.Entity, len(accepted))
	for n, k := range accepted {
		out[n] = sorted[k]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

//Personal.AI order the ending
