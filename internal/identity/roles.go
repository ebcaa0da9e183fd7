package identity

import (
	"sort"
	"strings"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleRequester Role = "REQUESTER"

	rolePrefix = "ROLE_"
)

// roleAliases maps legacy account labels onto the roles they grant.
var roleAliases = map[string]Role{
	"PROFESOR":  RoleRequester,
	"PROFESSOR": RoleRequester,
}

// RoleSet is the parsed form of an account's comma separated role labels.
type RoleSet map[Role]struct{}

// ParseRoles turns "ROLE_ADMIN, requester" style label lists into a RoleSet.
// The ROLE_ prefix is optional and case is ignored. ROLE_PROFESOR accounts
// book as requesters; unknown labels are dropped.
func ParseRoles(labels string) RoleSet {
	set := RoleSet{}
	for _, label := range strings.Split(labels, ",") {
		label = strings.ToUpper(strings.TrimSpace(label))
		label = strings.TrimPrefix(label, rolePrefix)
		if alias, ok := roleAliases[label]; ok {
			label = string(alias)
		}
		switch Role(label) {
		case RoleAdmin, RoleRequester:
			set[Role(label)] = struct{}{}
		}
	}
	return set
}

func NewRoleSet(roles ...Role) RoleSet {
	set := RoleSet{}
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// String renders the set in its stored label form, sorted.
func (s RoleSet) String() string {
	labels := make([]string, 0, len(s))
	for r := range s {
		labels = append(labels, rolePrefix+string(r))
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
