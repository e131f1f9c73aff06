package broker

import (
	"golang.org/x/time/rate"

	brokercfg "github.com/toolmesh/broker/config"
	"github.com/toolmesh/broker/tool"
)

// OptionsFromConfig derives broker options from a loaded broker.yaml.
// Only settings present in the file produce options; a nil config or a
// missing broker section yields none. Programmatic options passed to New
// after these take precedence.
func OptionsFromConfig(cfg *brokercfg.Config) []Option {
	if cfg == nil || cfg.Broker == nil {
		return nil
	}

	var opts []Option
	bc := cfg.Broker

	if bc.DefaultTimeout != "" {
		opts = append(opts, WithDefaultTimeout(bc.GetDefaultTimeout()))
	}
	if n := bc.GetMaxInFlight(); n > 0 {
		opts = append(opts, WithMaxInFlight(n))
	}
	if bc.RateLimit > 0 {
		opts = append(opts, WithRateLimit(
			rate.NewLimiter(rate.Limit(bc.RateLimit), bc.GetRateBurst())))
	}

	return opts
}

// ConfigureTools applies the broker.yaml tools section to a tool set
// before registration: disabled tools are dropped, and per-tool timeout
// overrides replace the tool's declared default and upper bound. Tools
// without an entry pass through unchanged.
func ConfigureTools(cfg *brokercfg.Config, tools []tool.Tool) []tool.Tool {
	if cfg == nil || len(cfg.Tools) == 0 {
		return tools
	}

	out := make([]tool.Tool, 0, len(tools))
	for _, t := range tools {
		tc, ok := cfg.Tools[t.Name()]
		if !ok {
			out = append(out, t)
			continue
		}
		if !tc.IsEnabled() {
			continue
		}

		bounds := t.Timeouts()
		if d := tc.GetTimeout(); d > 0 {
			bounds.Default = d
		}
		if d := tc.GetMaxTimeout(); d > 0 {
			bounds.Max = d
		}
		out = append(out, tool.WithTimeouts(t, bounds))
	}
	return out
}
