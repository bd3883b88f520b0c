package openai

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/koscakluka/pixel-core/core/llms/openai")
