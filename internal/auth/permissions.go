package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Mask is a set of granted action bits for one resource type.
type Mask int64

// Has reports whether any bit of bit is set in m.
func (m Mask) Has(bit Mask) bool {
	return m&bit != 0
}

// Add returns m with bit set.
func (m Mask) Add(bit Mask) Mask {
	return m | bit
}

// Remove returns m with bit cleared.
func (m Mask) Remove(bit Mask) Mask {
	return m &^ bit
}

// ResourceType is the closed set of resources that carry permissions.
type ResourceType string

// Resource types.
const (
	ResourceArea    ResourceType = "Area"
	ResourceProject ResourceType = "Project"
	ResourceDevice  ResourceType = "Device"
	ResourceRole    ResourceType = "Role"
	ResourceUser    ResourceType = "User"
)

// Action is a named bit in a resource's action table.
type Action struct {
	Name string
	Bit  Mask
}

// CRUD actions shared by every resource.
var (
	ActionSave    = Action{Name: "save", Bit: 1}
	ActionUpdate  = Action{Name: "update", Bit: 2}
	ActionRemove  = Action{Name: "remove", Bit: 4}
	ActionFind    = Action{Name: "find", Bit: 8}
	ActionFindAll = Action{Name: "find_all", Bit: 16}
)

// Composite actions. Bits are only meaningful within their resource table.
var (
	ActionAreaDeviceManager = Action{Name: "area_device_manager", Bit: 32}
	ActionAssignMembers     = Action{Name: "assign_members", Bit: 32}
	ActionRemoveMembers     = Action{Name: "remove_members", Bit: 64}
)

var crudActions = []Action{ActionSave, ActionUpdate, ActionRemove, ActionFind, ActionFindAll}

// actionTables lists, in bit order, the actions each resource understands.
var actionTables = map[ResourceType][]Action{
	ResourceArea:    withCRUD(ActionAreaDeviceManager),
	ResourceProject: withCRUD(),
	ResourceDevice:  withCRUD(),
	ResourceRole:    withCRUD(ActionAssignMembers, ActionRemoveMembers),
	ResourceUser:    withCRUD(),
}

func withCRUD(extra ...Action) []Action {
	out := make([]Action, 0, len(crudActions)+len(extra))
	out = append(out, crudActions...)
	return append(out, extra...)
}

// ResourceTypes returns every resource type in name order.
func ResourceTypes() []ResourceType {
	out := make([]ResourceType, 0, len(actionTables))
	for r := range actionTables {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseResourceType maps a resource name to its type. Matching ignores case.
func ParseResourceType(name string) (ResourceType, error) {
	for r := range actionTables {
		if strings.EqualFold(string(r), name) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResource, name)
}

// Actions returns the action table for resource, in bit order.
func Actions(resource ResourceType) []Action {
	table := actionTables[resource]
	out := make([]Action, len(table))
	copy(out, table)
	return out
}

// LookupAction finds the action called name in resource's table.
func LookupAction(resource ResourceType, name string) (Action, bool) {
	for _, a := range actionTables[resource] {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// FullMask ORs every action bit of resource.
func FullMask(resource ResourceType) Mask {
	var m Mask
	for _, a := range actionTables[resource] {
		m = m.Add(a.Bit)
	}
	return m
}

// ParseActions turns action names into a mask for resource. "all" selects
// the full table.
func ParseActions(resource ResourceType, names []string) (Mask, error) {
	var m Mask
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if name == "all" {
			m = m.Add(FullMask(resource))
			continue
		}
		a, ok := LookupAction(resource, name)
		if !ok {
			return 0, fmt.Errorf("%w: %q on %s", ErrUnknownAction, name, resource)
		}
		m = m.Add(a.Bit)
	}
	return m, nil
}

// ActionNames lists the names of the actions set in m, in bit order.
func ActionNames(resource ResourceType, m Mask) []string {
	var names []string
	for _, a := range actionTables[resource] {
		if m.Has(a.Bit) {
			names = append(names, a.Name)
		}
	}
	return names
}

// PermissionSet is a user's effective mask per resource.
type PermissionSet map[ResourceType]Mask

// Allows reports whether the set grants action on resource.
func (ps PermissionSet) Allows(resource ResourceType, action Action) bool {
	return ps[resource].Has(action.Bit)
}

// Merge ORs m into the mask held for resource.
func (ps PermissionSet) Merge(resource ResourceType, m Mask) {
	ps[resource] = ps[resource].Add(m)
}
