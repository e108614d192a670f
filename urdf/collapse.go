package urdf

import "github.com/pkg/errors"

// CollapseFixedLeaves removes fixed joints whose child is a leaf link, together with that link. This simplifies the
// kinematic structure by removing non-functional branches like "link_6 -> flange -> tool0" chains. A single pass is
// made, so a chain of fixed leaves collapses by one link per call. The input document is not modified. An error is
// returned when the remaining links and joints no longer form a valid document.
func CollapseFixedLeaves(doc *Document) (*Document, error) {
	// Build a map of which links are children (and how many times they're referenced)
	childLinks := make(map[string]int, len(doc.Joints))
	// Build a map of which links have children (are parents)
	parentLinks := make(map[string]bool, len(doc.Joints))
	for _, joint := range doc.Joints {
		childLinks[joint.Child]++
		parentLinks[joint.Parent] = true
	}

	leafLinksToRemove := make(map[string]bool)
	joints := make([]Joint, 0, len(doc.Joints))
	for _, joint := range doc.Joints {
		if joint.Type == FixedJoint && !parentLinks[joint.Child] && childLinks[joint.Child] == 1 {
			leafLinksToRemove[joint.Child] = true
			continue
		}
		joints = append(joints, joint)
	}
	if len(leafLinksToRemove) == 0 {
		return doc, nil
	}

	links := make([]Link, 0, len(doc.Links)-len(leafLinksToRemove))
	for _, link := range doc.Links {
		if leafLinksToRemove[link.Name] {
			continue
		}
		links = append(links, link)
	}

	collapsed, err := NewDocument(doc.Name, links, joints)
	if err != nil {
		return nil, errors.Wrapf(err, "collapsing %q", doc.Name)
	}
	collapsed.Materials = doc.Materials
	return collapsed, nil
}
