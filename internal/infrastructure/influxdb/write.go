package influxdb

import (
	"context"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/area-core/internal/auth"
)

// Measurement names.
const (
	MeasurementAuthzDecisions = "authz_decisions"
	MeasurementAreaEvents     = "area_events"
)

// ObserveDecision records a Guard decision. It satisfies
// auth.DecisionObserver and never blocks.
func (c *Client) ObserveDecision(_ context.Context, d auth.Decision) {
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	c.WritePointWithTime(MeasurementAuthzDecisions,
		map[string]string{
			"resource": string(d.Resource),
			"action":   d.Action,
			"allowed":  strconv.FormatBool(d.Allowed),
			"admin":    strconv.FormatBool(d.Admin),
		},
		map[string]any{
			"user_id": d.UserID,
			"count":   1,
		},
		at,
	)
}

// WriteAreaEvent records one area lifecycle event.
func (c *Client) WriteAreaEvent(projectID, areaID int64, event string) {
	c.WritePoint(MeasurementAreaEvents,
		map[string]string{
			"event":      event,
			"project_id": strconv.FormatInt(projectID, 10),
		},
		map[string]any{
			"area_id": areaID,
			"count":   1,
		},
	)
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point at timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
