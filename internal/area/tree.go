package area

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/nerrad567/area-core/internal/entity"
)

// TreeNode is the serialised form of an area subtree. Field order is part
// of the wire format.
type TreeNode struct {
	ID                int64            `json:"id"`
	EntityVersion     int              `json:"entityVersion"`
	EntityCreateDate  entity.Timestamp `json:"entityCreateDate"`
	EntityModifyDate  entity.Timestamp `json:"entityModifyDate"`
	Name              string           `json:"name"`
	Description       *string          `json:"description"`
	AreaConfiguration *string          `json:"areaConfiguration"`
	AreaViewType      ViewType         `json:"areaViewType"`
	MapInfo           *MapInfo         `json:"mapInfo"`
	InnerArea         []*TreeNode      `json:"innerArea"`
}

func newTreeNode(a *Area) *TreeNode {
	return &TreeNode{
		ID:                a.ID,
		EntityVersion:     a.EntityVersion,
		EntityCreateDate:  a.EntityCreateDate,
		EntityModifyDate:  a.EntityModifyDate,
		Name:              a.Name,
		Description:       optional(a.Description),
		AreaConfiguration: optional(a.AreaConfiguration),
		AreaViewType:      a.AreaViewType,
		MapInfo:           a.MapInfo,
		InnerArea:         []*TreeNode{},
	}
}

// BuildTree links areas into a tree rooted at rootID. Children are ordered
// by id; areas not connected to the root are ignored.
func BuildTree(areas []Area, rootID int64) (*TreeNode, error) {
	sorted := slices.Clone(areas)
	slices.SortFunc(sorted, func(a, b Area) int { return cmp.Compare(a.ID, b.ID) })

	nodes := make(map[int64]*TreeNode, len(sorted))
	for i := range sorted {
		nodes[sorted[i].ID] = newTreeNode(&sorted[i])
	}
	root, ok := nodes[rootID]
	if !ok {
		return nil, fmt.Errorf("building tree for area %d: %w", rootID, entity.ErrNotFound)
	}
	for i := range sorted {
		a := &sorted[i]
		if a.ID == rootID || a.ParentAreaID == nil {
			continue
		}
		if parent, ok := nodes[*a.ParentAreaID]; ok {
			parent.InnerArea = append(parent.InnerArea, nodes[a.ID])
		}
	}
	return root, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
