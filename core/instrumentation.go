package assistant

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scopeName = "github.com/koscakluka/pixel-core/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

type instruments struct {
	spoken            metric.Int64Counter
	synthesisFailures metric.Int64Counter
	wakeDetections    metric.Int64Counter
	dispatches        metric.Int64Counter
	backendFailures   metric.Int64Counter
}

var metrics = newInstruments(meter)

func newInstruments(m metric.Meter) instruments {
	return instruments{
		spoken: counter(m, "pixel.speech.spoken",
			"Speech requests synthesized to completion"),
		synthesisFailures: counter(m, "pixel.speech.failures",
			"Speech requests skipped because synthesis failed"),
		wakeDetections: counter(m, "pixel.wake.detections",
			"Utterances recognized as containing a wake phrase"),
		dispatches: counter(m, "pixel.commands.dispatched",
			"Commands dispatched, by outcome"),
		backendFailures: counter(m, "pixel.backend.failures",
			"Failed conversational backend calls"),
	}
}

// counter falls back to a noop counter when m cannot create one.
func counter(m metric.Meter, name, description string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(description))
	if err != nil || c == nil {
		logger.Warn("Failed to create counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}
