package subgraph

import (
	"fmt"
	"strconv"
	"strings"
)

// BaseURL identifies an ontology type across all of its versions.
type BaseURL string

// VersionedURL identifies one version of an ontology type, as
// "<base url>v/<version>".
type VersionedURL string

// ParseVersionedURL splits u into its base URL and version.
func ParseVersionedURL(u VersionedURL) (BaseURL, int, error) {
	s := string(u)
	idx := strings.LastIndex(s, "v/")
	if idx <= 0 || !strings.HasSuffix(s[:idx], "/") {
		return "", 0, fmt.Errorf("versioned url %q: missing version segment", s)
	}
	version, err := strconv.Atoi(s[idx+2:])
	if err != nil || version < 1 {
		return "", 0, fmt.Errorf("versioned url %q: invalid version %q", s, s[idx+2:])
	}
	return BaseURL(s[:idx]), version, nil
}

// NewVersionedURL joins a base URL and a version.
func NewVersionedURL(base BaseURL, version int) VersionedURL {
	return VersionedURL(fmt.Sprintf("%sv/%d", base, version))
}

// OntologyVertexID returns the vertex identifier of the type u names.
func OntologyVertexID(u VersionedURL) (VertexID, error) {
	base, version, err := ParseVersionedURL(u)
	if err != nil {
		return VertexID{}, err
	}
	return VertexID{BaseID: string(base), RevisionID: strconv.Itoa(version)}, nil
}
