package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode),
		})
	}

	if cfg.Gateway.TLS.Enabled {
		if cfg.Gateway.TLS.CertPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.tls.certPath",
				Message: "required when TLS is enabled",
			})
		}
		if cfg.Gateway.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.tls.keyPath",
				Message: "required when TLS is enabled",
			})
		}
	}

	if cfg.Storage.ViewportCacheDays < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "storage.viewportCacheDays",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Storage.ViewportCacheDays),
		})
	}

	if cfg.Canvas.GridPadding < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "canvas.gridPadding",
			Message: fmt.Sprintf("must be >= 0, got %v", cfg.Canvas.GridPadding),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
