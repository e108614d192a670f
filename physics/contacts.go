package physics

import (
	"go.viam.com/urdfsim/collision"
	"go.viam.com/urdfsim/spatialmath"
)

type placedCollider struct {
	handle   ColliderHandle
	body     BodyHandle
	owner    *body
	groups   collision.Groups
	geometry spatialmath.Geometry
}

// findContacts tests every pair of colliders on different bodies. Pairs between two fixed bodies, pairs filtered out by
// collision groups and pairs inside an articulation without self contacts are skipped.
func (e *Engine) findContacts() []ContactPair {
	placed := make([]placedCollider, 0, len(e.colliders))
	for _, h := range sortedKeys(e.colliders) {
		c := e.colliders[h]
		owner := e.bodies[c.desc.Body]
		placed = append(placed, placedCollider{
			handle:   h,
			body:     c.desc.Body,
			owner:    owner,
			groups:   c.desc.Groups,
			geometry: c.desc.Geometry.Transform(owner.pose),
		})
	}

	var contacts []ContactPair
	for i := range placed {
		for k := i + 1; k < len(placed); k++ {
			a, b := &placed[i], &placed[k]
			if a.body == b.body || (a.owner.desc.Fixed && b.owner.desc.Fixed) {
				continue
			}
			if !a.groups.Interacts(b.groups) {
				continue
			}
			if a.owner.articulation != 0 && a.owner.articulation == b.owner.articulation &&
				!e.articulations[a.owner.articulation].SelfContacts {
				continue
			}
			contact, ok := collision.Collide(a.geometry, b.geometry)
			if !ok {
				continue
			}
			contacts = append(contacts, ContactPair{
				ColliderA: a.handle,
				ColliderB: b.handle,
				BodyA:     a.body,
				BodyB:     b.body,
				Contact:   contact,
			})
		}
	}
	return contacts
}
