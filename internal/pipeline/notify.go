package pipeline

import (
	"context"
	"log/slog"
	"sbt/internal/dispatcher"
	"sbt/internal/job"
	"sbt/pkg/backoff"
	"sbt/pkg/cloudevent"
	"time"
)

// Callback delivery retries. Failures never affect the run outcome.
const (
	callbackRetries = 2
	callbackBackoff = 200 * time.Millisecond
)

// notifier posts run events to the document's callback URL.
type notifier struct {
	sender  *cloudevent.Sender
	builder *job.EventBuilder
	url     string
	key     string
	events  []string
	logger  *slog.Logger
}

func newNotifier(cfg *job.Config, runID, scheduler string, rc Config) *notifier {
	key := cfg.Callback.Key
	if key == "" {
		key = rc.CallbackKey
	}
	meta := map[string]string{
		"config":    cfg.Name,
		"scheduler": scheduler,
	}
	return &notifier{
		sender: cloudevent.NewSender(rc.CallbackTimeout, backoff.Policy{
			Retries: callbackRetries,
			Initial: callbackBackoff,
		}),
		builder: job.NewEventBuilder(runID, "sbt/"+cfg.Name, meta),
		url:     cfg.Callback.URL,
		key:     key,
		events:  cfg.Callback.Events,
		logger:  slog.With("component", "notifier", "runId", runID),
	}
}

// notify sends one event per job followed by the run summary.
func (n *notifier) notify(ctx context.Context, summary *dispatcher.Summary) {
	for _, r := range summary.Results {
		a := r.Artifact
		if r.OK() {
			n.send(ctx, n.builder.BuildSubmittedEvent(a.Index, a.JobName, r.Submission.JobID, a.Values))
		} else {
			n.send(ctx, n.builder.BuildFailedEvent(a.Index, a.JobName, a.Values, r.Err))
		}
	}
	n.send(ctx, n.builder.BuildCompleteEvent(summary.Total, summary.Submitted, summary.Failed, summary.FailedIndices))
}

func (n *notifier) send(ctx context.Context, event *cloudevent.CloudEvent) {
	if !job.FilteredEvents(event.Type, n.events) {
		return
	}
	if err := n.sender.Send(ctx, n.url, event, cloudevent.SendOptions{SigningKey: n.key}); err != nil {
		n.logger.Warn("Failed to deliver callback", "type", event.Type, "id", event.ID, "error", err)
		return
	}
	n.logger.Debug("Callback delivered", "type", event.Type, "id", event.ID)
}
