package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "areacore"

// Area event names published under Topics.AreaEvent.
const (
	EventAreaSaved     = "saved"
	EventAreaUpdated   = "updated"
	EventAreaRemoved   = "removed"
	EventDeviceAdded   = "device_added"
	EventDeviceUpdated = "device_updated"
	EventDeviceRemoved = "device_removed"
	EventImageSet      = "image_set"
	EventImageUnset    = "image_unset"
	EventTypeReset     = "type_reset"
)

// Topics builds topic names under a prefix.
//
//	topics := mqtt.Topics{Prefix: "areacore"}
//	topics.AreaEvent(3, 17, mqtt.EventAreaSaved)
//	// Returns: "areacore/area/3/17/saved"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// SystemStatus returns the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// AreaEvent returns the topic for one event on one area.
func (t Topics) AreaEvent(projectID, areaID int64, event string) string {
	return fmt.Sprintf("%s/area/%d/%d/%s", t.prefix(), projectID, areaID, event)
}

// ProjectAreaEvents returns the wildcard matching every area event of a project.
func (t Topics) ProjectAreaEvents(projectID int64) string {
	return fmt.Sprintf("%s/area/%d/#", t.prefix(), projectID)
}

// AllAreaEvents returns the wildcard matching every area event.
func (t Topics) AllAreaEvents() string {
	return t.prefix() + "/area/#"
}

// validPublishTopic rejects empty topics and wildcards, which are only
// legal in subscriptions.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
