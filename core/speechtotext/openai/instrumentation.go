package openai

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/pixel-core/core/speechtotext/openai"

var tracer = otel.Tracer(scopeName)
