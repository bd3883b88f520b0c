package speechtotext

// RecognizerOptions are shared by the recognizer adapters. Each adapter picks
// its own defaults for the fields left empty.
type RecognizerOptions struct {
	Model    string
	Language string
	// Endpoint overrides the service address, e.g. to point an OpenAI
	// compatible recognizer at Groq.
	Endpoint string
}

type RecognizerOption func(*RecognizerOptions)

func WithModel(model string) RecognizerOption {
	return func(o *RecognizerOptions) { o.Model = model }
}

func WithLanguage(language string) RecognizerOption {
	return func(o *RecognizerOptions) { o.Language = language }
}

func WithEndpoint(endpoint string) RecognizerOption {
	return func(o *RecognizerOptions) { o.Endpoint = endpoint }
}

// ApplyOptions applies opts on top of defaults.
func ApplyOptions(defaults RecognizerOptions, opts ...RecognizerOption) RecognizerOptions {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}
