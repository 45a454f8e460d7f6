package area

import "context"

// Event names.
const (
	EventSaved         = "saved"
	EventUpdated       = "updated"
	EventRemoved       = "removed"
	EventDeviceAdded   = "device_added"
	EventDeviceUpdated = "device_updated"
	EventDeviceRemoved = "device_removed"
	EventImageSet      = "image_set"
	EventImageUnset    = "image_unset"
	EventTypeReset     = "type_reset"
)

// Event describes a committed change to an area.
type Event struct {
	Name      string
	ProjectID int64
	AreaID    int64
	Data      any

	// Bytes is the stored image size for EventImageSet.
	Bytes int64
}

// Listener is told about every committed area change. Listeners run on the
// caller's goroutine and must not block.
type Listener interface {
	OnAreaEvent(ctx context.Context, e Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, e Event)

// OnAreaEvent calls f.
func (f ListenerFunc) OnAreaEvent(ctx context.Context, e Event) {
	f(ctx, e)
}
