package domain

import (
	"net/http"
	"strings"
)

// Resource names a permission-guarded area of the gateway. The set is closed.
type Resource string

const (
	ResourceProducts     Resource = "produtos"
	ResourceListings     Resource = "anuncios"
	ResourceIntegrations Resource = "integracoes"
)

var knownResources = map[Resource]struct{}{
	ResourceProducts:     {},
	ResourceListings:     {},
	ResourceIntegrations: {},
}

// ParseResource maps a stored resource name onto the closed enum.
func ParseResource(name string) (Resource, bool) {
	r := Resource(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := knownResources[r]; !ok {
		return "", false
	}
	return r, true
}

// Action is the permission bit required by a request.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// ActionForMethod maps GET to read and everything else to write.
func ActionForMethod(method string) Action {
	if strings.EqualFold(method, http.MethodGet) {
		return ActionRead
	}
	return ActionWrite
}

// PermissionSet holds the flags for one resource.
type PermissionSet struct {
	Read  bool
	Write bool
}

// PermissionMatrix is keyed by the closed Resource enum.
type PermissionMatrix map[Resource]PermissionSet

// NewPermissionMatrix builds a matrix from loosely keyed stored data, dropping unknown resources.
func NewPermissionMatrix(raw map[string]PermissionSet) PermissionMatrix {
	matrix := make(PermissionMatrix, len(raw))
	for name, set := range raw {
		if r, ok := ParseResource(name); ok {
			matrix[r] = set
		}
	}
	return matrix
}

// Allows reports whether the matrix grants action on resource. Unknown resources are denied.
func (m PermissionMatrix) Allows(resource Resource, action Action) bool {
	if _, ok := knownResources[resource]; !ok {
		return false
	}
	set, ok := m[resource]
	if !ok {
		return false
	}
	switch action {
	case ActionRead:
		return set.Read
	case ActionWrite:
		return set.Write
	}
	return false
}

// Raw flattens the matrix back to string keys for persistence.
func (m PermissionMatrix) Raw() map[string]PermissionSet {
	out := make(map[string]PermissionSet, len(m))
	for r, set := range m {
		out[string(r)] = set
	}
	return out
}

// PermissionName renders the resource.action pair used in authorization errors.
func PermissionName(resource Resource, action Action) string {
	return string(resource) + "." + string(action)
}
