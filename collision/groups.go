package collision

// Groups filters which colliders may produce contacts. Two colliders interact when each one's memberships intersect
// the other's filter.
type Groups struct {
	Memberships uint32 `json:"memberships"`
	Filter      uint32 `json:"filter"`
}

// AllGroups is a member of every group and interacts with every group.
var AllGroups = Groups{Memberships: 0xFFFFFFFF, Filter: 0xFFFFFFFF}

// Interacts reports whether colliders in the two groups may touch.
func (g Groups) Interacts(other Groups) bool {
	return g.Memberships&other.Filter != 0 && other.Memberships&g.Filter != 0
}
