package job

import (
	"fmt"
	"sbt/pkg/cloudevent"
	"slices"
)

// Event types for run callbacks
const (
	EventTypeSubmitted = "sbt.job.submitted"
	EventTypeFailed    = "sbt.job.failed"
	EventTypeComplete  = "sbt.run.complete"
)

// EventTypes lists every event a callback can subscribe to.
var EventTypes = []string{EventTypeSubmitted, EventTypeFailed, EventTypeComplete}

func isEventType(t string) bool {
	return slices.Contains(EventTypes, t)
}

// FilteredEvents returns true if the event type should be sent based on the filter.
// If the filter is empty, all events are allowed.
func FilteredEvents(eventType string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.Contains(filter, eventType)
}

// EventBuilder builds CloudEvents for one run.
type EventBuilder struct {
	source string
	runID  string
	meta   map[string]string
}

// NewEventBuilder creates a new EventBuilder. The run ID is the subject of
// every event.
func NewEventBuilder(runID, source string, meta map[string]string) *EventBuilder {
	return &EventBuilder{
		source: source,
		runID:  runID,
		meta:   meta,
	}
}

// Build creates a new CloudEvent with the given type and data.
func (b *EventBuilder) Build(eventType, suffix string, data map[string]any) *cloudevent.CloudEvent {
	eventID := fmt.Sprintf("%s-%s", b.runID, suffix)
	return cloudevent.New(eventType, b.source, b.runID, eventID, data)
}

// BuildSubmittedEvent creates an event for an accepted job.
func (b *EventBuilder) BuildSubmittedEvent(index int, jobName, jobID string, values map[string]any) *cloudevent.CloudEvent {
	data := map[string]any{
		"runId":   b.runID,
		"index":   index,
		"jobName": jobName,
		"jobId":   jobID,
		"values":  values,
		"meta":    b.meta,
	}
	return b.Build(EventTypeSubmitted, fmt.Sprintf("job-%d", index), data)
}

// BuildFailedEvent creates an event for a rejected job.
func (b *EventBuilder) BuildFailedEvent(index int, jobName string, values map[string]any, err error) *cloudevent.CloudEvent {
	data := map[string]any{
		"runId":   b.runID,
		"index":   index,
		"jobName": jobName,
		"values":  values,
		"meta":    b.meta,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return b.Build(EventTypeFailed, fmt.Sprintf("job-%d", index), data)
}

// BuildCompleteEvent creates the end-of-run summary event.
func (b *EventBuilder) BuildCompleteEvent(total, submitted, failed int, failedIndices []int) *cloudevent.CloudEvent {
	data := map[string]any{
		"runId":         b.runID,
		"total":         total,
		"submitted":     submitted,
		"failed":        failed,
		"failedIndices": failedIndices,
		"meta":          b.meta,
	}
	return b.Build(EventTypeComplete, "complete", data)
}
