package area

import (
	"strings"

	"github.com/nerrad567/area-core/internal/entity"
)

const (
	maxNameLength        = 255
	maxDescriptionLength = 3000
	maxImagePathLength   = 255
)

// validate checks the user-editable fields. It normalises the name and
// defaults the view type.
func validate(a *Area) error {
	var v entity.Validator
	a.Name = strings.TrimSpace(a.Name)
	v.NotEmpty("area-name", a.Name)
	v.Text("area-name", a.Name, maxNameLength)
	v.Text("area-description", a.Description, maxDescriptionLength)
	v.Text("area-imagepath", a.ImagePath, maxImagePathLength)
	v.NoMaliciousCode("area-areaConfiguration", a.AreaConfiguration)
	v.Required("area-project", a.ProjectID)

	if a.AreaViewType == "" {
		a.AreaViewType = ViewImage
	} else if _, err := ParseViewType(string(a.AreaViewType)); err != nil {
		v.Add("area-areaViewType", "invalid view type", string(a.AreaViewType))
	}
	if a.ParentAreaID != nil && *a.ParentAreaID <= 0 {
		a.ParentAreaID = nil
	}
	if a.MapInfo != nil {
		v.Text("area-mapInfo", a.MapInfo.Icon, maxNameLength)
	}
	return v.Err()
}

func validateAreaDevice(ad *AreaDevice) error {
	var v entity.Validator
	v.Required("areadevice-device", ad.ResolveDeviceID())
	if ad.MapInfo != nil {
		v.Text("areadevice-mapInfo", ad.MapInfo.Icon, maxNameLength)
	}
	return v.Err()
}
