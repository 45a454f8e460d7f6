package area

import "errors"

// Sentinel errors. Lookups of missing areas or links return
// entity.ErrNotFound.
var (
	ErrDuplicate       = errors.New("area: duplicate name under parent")
	ErrDeviceMapped    = errors.New("area: device already mapped")
	ErrImageNotFound   = errors.New("area: image not found")
	ErrInvalidViewType = errors.New("area: invalid view type")
	ErrCycle           = errors.New("area: parent is a descendant")
)
