package config

const (
	defaultServerPort = 8080

	defaultRetryMaxAttempts = 3
	defaultRetryMultiplier  = 2.0

	defaultCircuitBreakerMaxFailures = 5
	defaultCircuitBreakerHalfOpen    = 1

	defaultSubdomainOffset = 2
)

// defaults returns the lowest-precedence configuration layer. Every key
// here is also known to the environment lookup, so it can be overridden by
// an APP_ variable even when no YAML file mentions it.
func defaults() map[string]any {
	return map[string]any{
		"server.host":             "0.0.0.0",
		"server.port":             defaultServerPort,
		"server.read_timeout":     "5s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "15s",
		"server.h2c":              true,

		"log.level":  "info",
		"log.format": "json",

		"framework.env":              "development",
		"framework.proxy":            false,
		"framework.proxy_ip_header":  "X-Forwarded-For",
		"framework.max_ips_count":    0,
		"framework.subdomain_offset": defaultSubdomainOffset,
		"framework.trusted_proxies":  []string{},
		"framework.keys":             []string{},
		"framework.silent":           false,

		"client.base_url":                        "http://localhost:8081",
		"client.timeout":                         "30s",
		"client.retry.max_attempts":              defaultRetryMaxAttempts,
		"client.retry.initial_interval":          "100ms",
		"client.retry.max_interval":              "10s",
		"client.retry.multiplier":                defaultRetryMultiplier,
		"client.circuit_breaker.max_failures":    defaultCircuitBreakerMaxFailures,
		"client.circuit_breaker.timeout":         "30s",
		"client.circuit_breaker.half_open_limit": defaultCircuitBreakerHalfOpen,
		"client.rate_limit.requests_per_second":  0,
		"client.rate_limit.burst_size":           0,

		"health.check_timeout": "2s",

		"telemetry.enabled":      false,
		"telemetry.exporter":     "stdout",
		"telemetry.endpoint":     "",
		"telemetry.service_name": "cascade",

		"metrics.enabled":   true,
		"metrics.path":      "/metrics",
		"metrics.namespace": "cascade",
	}
}

// listKeys are split on commas when they arrive from the environment.
var listKeys = map[string]bool{
	"framework.trusted_proxies": true,
	"framework.keys":            true,
}
