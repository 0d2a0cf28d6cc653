package access

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Role is one tag from the closed permission vocabulary. The vocabulary is
// fixed at build time; values outside it are a data-integrity fault.
type Role string

const (
	RoleSuperAdmin  Role = "SuperAdmin"
	RoleAdmin       Role = "Admin"
	RoleDispatcher  Role = "Dispatcher"
	RoleDriver      Role = "Driver"
	RoleVolunteer   Role = "Volunteer"
	RoleClient      Role = "Client"
	RoleCoordinator Role = "Coordinator"

	// Add-on roles modify a base role, they never replace it.
	RoleOnCall  Role = "OnCall"
	RoleTrainer Role = "Trainer"
)

var canonicalRoles = map[string]Role{
	"superadmin":  RoleSuperAdmin,
	"admin":       RoleAdmin,
	"dispatcher":  RoleDispatcher,
	"driver":      RoleDriver,
	"volunteer":   RoleVolunteer,
	"client":      RoleClient,
	"coordinator": RoleCoordinator,
	"oncall":      RoleOnCall,
	"trainer":     RoleTrainer,
}

// ParseRole resolves a raw tag to its canonical form. Matching is
// case-insensitive; anything outside the vocabulary fails with
// ErrUnknownRole.
func ParseRole(raw string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", fmt.Errorf("%w: empty tag", ErrUnknownRole)
	}
	role, ok := canonicalRoles[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// RoleSet is a set of role tags. The zero value (nil) is a valid empty set.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from canonical tags.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the tag.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// HasAny reports whether the set intersects the requirement. An empty
// requirement is never satisfied: a handler that accidentally declares zero
// required roles must not silently grant access.
func (s RoleSet) HasAny(required ...Role) bool {
	if len(required) == 0 {
		return false
	}
	for _, r := range required {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// HasAll reports whether every required tag is present. An empty requirement
// returns false, mirroring HasAny.
func (s RoleSet) HasAll(required ...Role) bool {
	if len(required) == 0 {
		return false
	}
	for _, r := range required {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// Roles returns the tags in deterministic order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the tags as plain strings, sorted.
func (s RoleSet) Strings() []string {
	roles := s.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// MarshalJSON always encodes the set as a JSON array; the scalar legacy form
// never leaves the storage boundary.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// NormalizeRoles reconciles the persisted role representation into a RoleSet.
// The backing store may hold a single scalar tag, a collection of tags, raw
// JSON of either shape, or nothing at all. Absent input yields the empty set;
// an unrecognized tag yields ErrUnknownRole. Normalization is idempotent:
// feeding a normalized set (or its string form) back in returns an equal set.
func NormalizeRoles(raw any) (RoleSet, error) {
	switch v := raw.(type) {
	case nil:
		return RoleSet{}, nil
	case RoleSet:
		set := make(RoleSet, len(v))
		for r := range v {
			set[r] = struct{}{}
		}
		return set, nil
	case Role:
		return normalizeTags(string(v))
	case string:
		return normalizeTags(v)
	case []Role:
		tags := make([]string, len(v))
		for i, r := range v {
			tags[i] = string(r)
		}
		return normalizeTags(tags...)
	case []string:
		return normalizeTags(v...)
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			tag, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string tag %v", ErrUnknownRole, item)
			}
			tags = append(tags, tag)
		}
		return normalizeTags(tags...)
	case json.RawMessage:
		return normalizeJSON([]byte(v))
	case []byte:
		return normalizeJSON(v)
	default:
		return nil, fmt.Errorf("%w: unsupported role representation %T", ErrUnknownRole, raw)
	}
}

func normalizeTags(tags ...string) (RoleSet, error) {
	set := make(RoleSet, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		role, err := ParseRole(tag)
		if err != nil {
			return nil, err
		}
		set[role] = struct{}{}
	}
	return set, nil
}

// normalizeJSON accepts the two physical shapes the legacy schema produced:
// a JSON array of tags or a bare JSON string.
func normalizeJSON(data []byte) (RoleSet, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return RoleSet{}, nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return normalizeTags(list...)
	}
	var scalar string
	if err := json.Unmarshal(data, &scalar); err == nil {
		return normalizeTags(scalar)
	}
	return nil, fmt.Errorf("%w: undecodable role payload", ErrUnknownRole)
}
