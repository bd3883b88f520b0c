package llms

import "go.opentelemetry.io/contrib/bridges/otelslog"

var logger = otelslog.NewLogger("github.com/koscakluka/pixel-core/core/llms")
