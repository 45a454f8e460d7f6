package area

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/area-core/internal/device"
	"github.com/nerrad567/area-core/internal/entity"
)

// Tables.
const (
	Table       = "areas"
	DeviceTable = "area_devices"
)

// ViewType selects how an area is drawn and which image files it accepts.
type ViewType string

// View types.
const (
	ViewImage  ViewType = "IMAGE"
	ViewMap    ViewType = "MAP"
	ViewBIMXKT ViewType = "BIM_XKT"
	ViewBIMIFC ViewType = "BIM_IFC"
)

var viewExtensions = map[ViewType][]string{
	ViewImage:  {"jpg", "jpeg", "svg", "webp", "png"},
	ViewMap:    {"jpg", "jpeg", "svg", "webp", "png"},
	ViewBIMXKT: {"xkt"},
	ViewBIMIFC: {"ifc"},
}

// ParseViewType accepts the exact upper-case names.
func ParseViewType(s string) (ViewType, error) {
	v := ViewType(s)
	if _, ok := viewExtensions[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidViewType, s)
	}
	return v, nil
}

// Extensions lists the file extensions the view type accepts.
func (v ViewType) Extensions() []string {
	return slices.Clone(viewExtensions[v.orDefault()])
}

// Supports reports whether a file with extension ext may be attached.
func (v ViewType) Supports(ext string) bool {
	return slices.Contains(viewExtensions[v.orDefault()], strings.ToLower(ext))
}

func (v ViewType) orDefault() ViewType {
	if v == "" {
		return ViewImage
	}
	return v
}

// MapInfo places an area or a device on its parent's drawing.
type MapInfo struct {
	Icon string  `json:"icon"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// Area is one node of a project's area tree.
type Area struct {
	entity.Base
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	ProjectID         int64    `json:"projectId"`
	ParentAreaID      *int64   `json:"parentAreaId"`
	AreaViewType      ViewType `json:"areaViewType"`
	ImagePath         string   `json:"imagePath"`
	AreaConfiguration string   `json:"areaConfiguration"`
	MapInfo           *MapInfo `json:"mapInfo"`
}

// MarshalJSON writes an unset description, image path or configuration as
// null, matching the tree serialization.
func (a Area) MarshalJSON() ([]byte, error) {
	type plain Area
	return json.Marshal(struct {
		plain
		Description       *string `json:"description"`
		ImagePath         *string `json:"imagePath"`
		AreaConfiguration *string `json:"areaConfiguration"`
	}{plain(a), optional(a.Description), optional(a.ImagePath), optional(a.AreaConfiguration)})
}

// IsRoot reports whether the area has no parent.
func (a *Area) IsRoot() bool {
	return a.ParentAreaID == nil
}

// AreaDevice places a device inside an area.
type AreaDevice struct {
	entity.Base
	AreaID   int64          `json:"areaId"`
	DeviceID int64          `json:"deviceId"`
	Device   *device.Device `json:"device,omitempty"`
	MapInfo  *MapInfo       `json:"mapInfo"`
}

// ResolveDeviceID accepts the device either as deviceId or as a nested
// {"device":{"id":n}} object.
func (ad *AreaDevice) ResolveDeviceID() int64 {
	if ad.DeviceID <= 0 && ad.Device != nil {
		ad.DeviceID = ad.Device.ID
	}
	return ad.DeviceID
}

func encodeMapInfo(m *MapInfo) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding map info: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMapInfo(s sql.NullString) (*MapInfo, error) {
	if !s.Valid || s.String == "" {
		return nil, nil //nolint:nilnil // absent map info is not an error
	}
	var m MapInfo
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("decoding map info: %w", err)
	}
	return &m, nil
}
