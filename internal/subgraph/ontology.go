package subgraph

import "sort"

// typeReferences lists the ontology types a schema refers to, by edge kind.
type typeReferences struct {
	dataTypes        []VersionedURL
	propertyTypes    []VersionedURL
	linkTypes        []VersionedURL
	linkDestinations []VersionedURL
	parents          []VersionedURL
}

// propertyTypeReferences collects the data types and property types a
// property type schema constrains through its oneOf alternatives.
func propertyTypeReferences(schema map[string]any) typeReferences {
	var refs typeReferences
	var visit func(values []any)
	visit = func(values []any) {
		for _, raw := range values {
			value, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if ref, ok := value["$ref"].(string); ok {
				refs.dataTypes = append(refs.dataTypes, VersionedURL(ref))
				continue
			}
			if props, ok := value["properties"].(map[string]any); ok {
				for _, key := range sortedKeys(props) {
					refs.propertyTypes = append(refs.propertyTypes, propertyRef(props[key])...)
				}
				continue
			}
			if items, ok := value["items"].(map[string]any); ok {
				if nested, ok := items["oneOf"].([]any); ok {
					visit(nested)
				}
			}
		}
	}
	if oneOf, ok := schema["oneOf"].([]any); ok {
		visit(oneOf)
	}
	refs.dedupe()
	return refs
}

// entityTypeReferences collects the properties, links, link destinations and
// parents an entity type schema names.
func entityTypeReferences(schema map[string]any) typeReferences {
	var refs typeReferences
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, key := range sortedKeys(props) {
			refs.propertyTypes = append(refs.propertyTypes, propertyRef(props[key])...)
		}
	}
	if links, ok := schema["links"].(map[string]any); ok {
		for _, key := range sortedKeys(links) {
			refs.linkTypes = append(refs.linkTypes, VersionedURL(key))
			link, _ := links[key].(map[string]any)
			items, _ := link["items"].(map[string]any)
			oneOf, _ := items["oneOf"].([]any)
			for _, dest := range oneOf {
				if d, ok := dest.(map[string]any); ok {
					if ref, ok := d["$ref"].(string); ok {
						refs.linkDestinations = append(refs.linkDestinations, VersionedURL(ref))
					}
				}
			}
		}
	}
	if allOf, ok := schema["allOf"].([]any); ok {
		for _, parent := range allOf {
			if p, ok := parent.(map[string]any); ok {
				if ref, ok := p["$ref"].(string); ok {
					refs.parents = append(refs.parents, VersionedURL(ref))
				}
			}
		}
	}
	refs.dedupe()
	return refs
}

// propertyRef reads a property value that is either {"$ref": ...} or an
// array of them.
func propertyRef(raw any) []VersionedURL {
	value, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	if ref, ok := value["$ref"].(string); ok {
		return []VersionedURL{VersionedURL(ref)}
	}
	if items, ok := value["items"].(map[string]any); ok {
		if ref, ok := items["$ref"].(string); ok {
			return []VersionedURL{VersionedURL(ref)}
		}
	}
	return nil
}

func (r *typeReferences) dedupe() {
	r.dataTypes = uniqueURLs(r.dataTypes)
	r.propertyTypes = uniqueURLs(r.propertyTypes)
	r.linkTypes = uniqueURLs(r.linkTypes)
	r.linkDestinations = uniqueURLs(r.linkDestinations)
	r.parents = uniqueURLs(r.parents)
}

func uniqueURLs(in []VersionedURL) []VersionedURL {
	seen := make(map[VersionedURL]bool, len(in))
	out := in[:0]
	for _, u := range in {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
