package subgraph

// GetRoots returns the inner element of every root vertex, in root order.
func GetRoots(sg *Subgraph) ([]Element, error) {
	out := make([]Element, 0, len(sg.Roots))
	for _, root := range sg.Roots {
		v, ok := sg.Vertices[root.BaseID][root.RevisionID]
		if !ok {
			id := root
			return nil, &ConsistencyError{
				Message:  "roots should have corresponding vertices but one was missing",
				VertexID: &id,
			}
		}
		out = append(out, v.Inner)
	}
	return out, nil
}

// GetRootEntities is GetRoots for subgraphs rooted at entities.
func GetRootEntities(sg *Subgraph) ([]*Entity, error) {
	roots, err := GetRoots(sg)
	if err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, len(roots))
	for i, r := range roots {
		e, ok := r.(*Entity)
		if !ok {
			id := sg.Roots[i]
			return nil, &ConsistencyError{Message: "root is not an entity", VertexID: &id}
		}
		out = append(out, e)
	}
	return out, nil
}

// IsEntityRootedSubgraph reports whether every root resolves to an entity.
func IsEntityRootedSubgraph(sg *Subgraph) bool {
	for _, root := range sg.Roots {
		v, ok := sg.Vertices[root.BaseID][root.RevisionID]
		if !ok || v.Kind != VertexKindEntity {
			return false
		}
	}
	return true
}
