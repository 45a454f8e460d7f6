package device

import "github.com/nerrad567/area-core/internal/entity"

// Table is the SQL table devices live in.
const Table = "devices"

// Device is a piece of hardware registered in a project.
type Device struct {
	entity.Base
	DeviceName  string `json:"deviceName"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Description string `json:"description"`
	ProjectID   int64  `json:"projectId"`
}
