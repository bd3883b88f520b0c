package llms

import "net/http"

const defaultMaxHistory = 50

// BackendOptions are shared by the backend adapters. Each adapter picks its
// own defaults for Model and Endpoint.
type BackendOptions struct {
	Model    string
	Endpoint string
	Persona  Persona
	History  History
	// MaxHistory caps how many past messages are sent with each request.
	MaxHistory int
	HTTPClient *http.Client
}

type BackendOption func(*BackendOptions)

func WithModel(model string) BackendOption {
	return func(o *BackendOptions) { o.Model = model }
}

func WithEndpoint(endpoint string) BackendOption {
	return func(o *BackendOptions) { o.Endpoint = endpoint }
}

func WithPersona(persona Persona) BackendOption {
	return func(o *BackendOptions) { o.Persona = persona }
}

// WithHistory keeps the conversation in history instead of in memory.
func WithHistory(history History) BackendOption {
	return func(o *BackendOptions) { o.History = history }
}

func WithMaxHistory(n int) BackendOption {
	return func(o *BackendOptions) { o.MaxHistory = n }
}

func WithHTTPClient(client *http.Client) BackendOption {
	return func(o *BackendOptions) { o.HTTPClient = client }
}

// ApplyOptions applies opts on top of defaults and fills in whatever is
// still missing.
func ApplyOptions(defaults BackendOptions, opts ...BackendOption) BackendOptions {
	defaults.Persona = DefaultPersona()
	defaults.MaxHistory = defaultMaxHistory
	for _, opt := range opts {
		opt(&defaults)
	}
	if defaults.History == nil {
		defaults.History = NewMemoryHistory()
	}
	return defaults
}
