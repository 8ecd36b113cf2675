package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// problems collects validation failures for one config section.
type problems []error

// failIf records a failure built from format and args when bad is true.
func (p *problems) failIf(bad bool, format string, args ...any) {
	if bad {
		*p = append(*p, fmt.Errorf(format, args...))
	}
}

func (p problems) err() error { return errors.Join(p...) }

// Validate checks every section and joins all failures into one error.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.validate(),
		c.Log.validate(),
		c.Framework.validate(),
		c.Client.validate(),
		c.Health.validate(),
		c.Telemetry.validate(),
		c.Metrics.validate(),
	)
}

func (s *ServerConfig) validate() error {
	var p problems
	p.failIf(s.Port < 1 || s.Port > 65535, "server.port must be between 1 and 65535, got %d", s.Port)
	p.failIf(s.ReadTimeout <= 0, "server.read_timeout must be positive")
	p.failIf(s.WriteTimeout <= 0, "server.write_timeout must be positive")
	p.failIf(s.RequestTimeout < 0, "server.request_timeout must not be negative")
	return p.err()
}

func (l *LogConfig) validate() error {
	var p problems
	p.failIf(!slices.Contains([]string{"debug", "info", "warn", "error"}, l.Level),
		"log.level must be one of: debug, info, warn, error; got %q", l.Level)
	p.failIf(!slices.Contains([]string{"json", "text"}, l.Format), "log.format must be one of: json, text; got %q", l.Format)
	return p.err()
}

func (cl *ClientConfig) validate() error {
	var p problems
	p.failIf(cl.BaseURL == "", "client.base_url must not be empty")
	p.failIf(cl.Timeout <= 0, "client.timeout must be positive")
	p.failIf(cl.Retry.MaxAttempts < 1, "client.retry.max_attempts must be >= 1, got %d", cl.Retry.MaxAttempts)
	p.failIf(cl.Retry.Multiplier <= 0, "client.retry.multiplier must be positive, got %g", cl.Retry.Multiplier)
	p.failIf(cl.CircuitBreaker.MaxFailures < 1,
		"client.circuit_breaker.max_failures must be >= 1, got %d", cl.CircuitBreaker.MaxFailures)

	rl := cl.RateLimit
	p.failIf(rl.RequestsPerSecond < 0,
		"client.rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond)
	p.failIf(rl.RequestsPerSecond > 0 && rl.BurstSize < 1,
		"client.rate_limit.burst_size must be >= 1 when limiting, got %d", rl.BurstSize)
	return p.err()
}

func (t *TelemetryConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	var p problems
	p.failIf(!slices.Contains([]string{"stdout", "otlp"}, t.Exporter), "telemetry.exporter must be one of: stdout, otlp; got %q", t.Exporter)
	p.failIf(t.Exporter == "otlp" && t.Endpoint == "", "telemetry.endpoint must not be empty when exporter is otlp")
	return p.err()
}

func (f *FrameworkConfig) validate() error {
	var p problems
	p.failIf(f.MaxIPsCount < 0, "framework.max_ips_count must not be negative, got %d", f.MaxIPsCount)
	p.failIf(f.SubdomainOffset < 1, "framework.subdomain_offset must be >= 1, got %d", f.SubdomainOffset)
	p.failIf(strings.ContainsAny(f.ProxyIPHeader, " :"),
		"framework.proxy_ip_header is not a valid header name: %q", f.ProxyIPHeader)
	if _, err := f.TrustedPrefixes(); err != nil {
		p = append(p, err)
	}
	for i, key := range f.Keys {
		p.failIf(key == "", "framework.keys[%d] must not be empty", i)
	}
	return p.err()
}

func (h *HealthConfig) validate() error {
	var p problems
	p.failIf(h.CheckTimeout < 0, "health.check_timeout must not be negative")
	return p.err()
}

func (m *MetricsConfig) validate() error {
	if !m.Enabled {
		return nil
	}
	var p problems
	p.failIf(!strings.HasPrefix(m.Path, "/"), "metrics.path must start with '/', got %q", m.Path)
	p.failIf(m.Path == "/", "metrics.path must not be the root path")
	return p.err()
}
