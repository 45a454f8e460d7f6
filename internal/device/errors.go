package device

import "errors"

// ErrDuplicate is returned when the project already has a device with the
// same name.
var ErrDuplicate = errors.New("device: name already used in project")
