package tool

// WithTimeouts returns a Tool identical to t except that it reports the
// given timeout bounds. It applies configuration-level overrides to tools
// built with fixed defaults.
func WithTimeouts(t Tool, bounds TimeoutConfig) Tool {
	return &timeoutOverride{Tool: t, bounds: bounds}
}

type timeoutOverride struct {
	Tool
	bounds TimeoutConfig
}

func (o *timeoutOverride) Timeouts() TimeoutConfig {
	return o.bounds
}
