// Package observability provides run metrics exported in the Prometheus
// text format.
package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrScheduler = "scheduler"
	attrSuccess   = "success"
	attrConfig    = "config"
	attrOutcome   = "outcome"
)

func schedulerAttr(name string) attribute.KeyValue {
	return attribute.String(attrScheduler, name)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func configAttr(name string) attribute.KeyValue {
	return attribute.String(attrConfig, name)
}

// outcomeAttr groups a run result into a low-cardinality label.
func outcomeAttr(failed int) attribute.KeyValue {
	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	return attribute.String(attrOutcome, outcome)
}

// WithScheduler returns a metric option with the scheduler attribute.
func WithScheduler(name string) metric.MeasurementOption {
	return metric.WithAttributes(schedulerAttr(name))
}

// WithSuccess returns a metric option with the success attribute.
func WithSuccess(success bool) metric.MeasurementOption {
	return metric.WithAttributes(successAttr(success))
}
