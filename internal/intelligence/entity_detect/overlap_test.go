package entity_detect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/turtacn/entigo/pkg/types/entity"
)

func ent(name string, start, end int) entity.Entity {
	return entity.Entity{Entity: name, Start: start, End: end}
}

func TestNonOverlapping(t *testing.T) {
	tests := []struct {
		name     string
		pool     []entity.Entity
		expected []string
		want     []entity.Entity
	}{
		{
			name: "longer candidate wins",
			pool: []entity.Entity{ent("B", 2, 4), ent("A", 0, 5)},
			want: []entity.Entity{ent("A", 0, 5)},
		},
		{
			name: "equal length goes to the earlier start",
			pool: []entity.Entity{ent("B", 2, 5), ent("A", 0, 3)},
			want: []entity.Entity{ent("A", 0, 3)},
		},
		{
			name: "disjoint candidates are sorted by start",
			pool: []entity.Entity{ent("B", 6, 8), ent("A", 0, 3)},
			want: []entity.Entity{ent("A", 0, 3), ent("B", 6, 8)},
		},
		{
			name: "identical spans both survive",
			pool: []entity.Entity{ent("A", 0, 3), ent("B", 0, 3)},
			want: []entity.Entity{ent("A", 0, 3), ent("B", 0, 3)},
		},
		{
			name:     "accepted expected duplicate blocks an unexpected one",
			pool:     []entity.Entity{ent("A", 0, 3), ent("B", 0, 3)},
			expected: []string{"A"},
			want:     []entity.Entity{ent("A", 0, 3)},
		},
		{
			name:     "expected duplicate evicts the accepted unexpected one",
			pool:     []entity.Entity{ent("B", 0, 3), ent("A", 0, 3)},
			expected: []string{"A"},
			want:     []entity.Entity{ent("A", 0, 3)},
		},
		{
			name: "expected candidate evicts and puts back",
			pool: []entity.Entity{
				ent("LONG", 0, 10),
				ent("E", 4, 6),
				ent("L", 0, 3),
				ent("R", 7, 10),
			},
			expected: []string{"E"},
			want:     []entity.Entity{ent("L", 0, 3), ent("E", 4, 6), ent("R", 7, 10)},
		},
		{
			name:     "two overlapping expected candidates keep the longer",
			pool:     []entity.Entity{ent("E2", 3, 7), ent("E1", 0, 5)},
			expected: []string{"E1", "E2"},
			want:     []entity.Entity{ent("E1", 0, 5)},
		},
		{
			name: "empty pool",
			pool: nil,
			want: []entity.Entity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nonOverlapping(tt.pool, tt.expected)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("nonOverlapping() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNonOverlapping_NoSharedBytes(t *testing.T) {
	pool := []entity.Entity{
		ent("A", 0, 4), ent("B", 3, 9), ent("C", 8, 12), ent("D", 10, 11),
		ent("E", 1, 2), ent("F", 12, 20), ent("G", 15, 16), ent("H", 19, 22),
	}
	for _, expected := range [][]string{nil, {"D"}, {"G", "E"}, {"C", "H"}} {
		got := nonOverlapping(pool, expected)
		for i := range got {
			for j := i + 1; j < len(got); j++ {
				a, b := got[i], got[j]
				if a.Overlaps(b) && (a.Start != b.Start || a.End != b.End) {
					t.Errorf("expected=%v: %v overlaps %v", expected, a, b)
				}
			}
		}
		for i := 1; i < len(got); i++ {
			if got[i-1].Start > got[i].Start {
				t.Errorf("expected=%v: result not sorted: %v", expected, got)
			}
		}
	}
}

//Personal.AI order the ending
