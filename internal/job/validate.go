package job

import (
	"fmt"
	"net/url"
	"regexp"
	"sbt/internal/apperrors"
	"sbt/internal/matrix"
	"sbt/internal/render"
	"strings"
)

// Validation limits
const (
	maxNameLength     = 64
	maxCallbackEvents = 16
)

// Built-in template variables set for every job.
const (
	ReservedPrefix = "SBT_"
	VarJobName     = "SBT_JOB_NAME"
	VarLogfileName = "SBT_LOGFILE_NAME"
	VarLogdir      = "SBT_LOGDIR"
	VarIndex       = "SBT_INDEX"
)

// namePattern allows alphanumeric, dots, hyphens, and underscores
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// identPattern matches names usable as template variables and shell variables.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validate validates a decoded document. Does not modify the config.
func validate(cfg *Config) error {
	if !namePattern.MatchString(cfg.Name) {
		return apperrors.Configuration("name", fmt.Sprintf("name %q must be alphanumeric (dots, hyphens and underscores allowed)", cfg.Name))
	}
	if len(cfg.Name) > maxNameLength {
		return apperrors.Configuration("name", fmt.Sprintf("name exceeds maximum length of %d", maxNameLength))
	}

	if _, err := render.New(cfg.TemplateEngine); err != nil {
		return err
	}

	for k, v := range cfg.Defaults {
		if err := validateVariable("default_values."+k, k); err != nil {
			return err
		}
		if !matrix.IsScalar(v) {
			return apperrors.Configuration("default_values."+k, fmt.Sprintf("must be a string, number, boolean or datetime, got %T", v))
		}
	}

	for _, axis := range cfg.Matrix {
		if err := validateVariable("matrix."+axis.Name, axis.Name); err != nil {
			return err
		}
	}
	if err := cfg.Matrix.Validate(); err != nil {
		return err
	}

	for _, e := range cfg.Env {
		if !identPattern.MatchString(e.Name) {
			return apperrors.Configuration("env_vars."+e.Name, "not a valid environment variable name")
		}
	}

	if cfg.Callback != nil {
		if err := validateURL(cfg.Callback.URL); err != nil {
			return apperrors.Configuration("callback.url", fmt.Sprintf("invalid callback URL: %v", err))
		}
		if len(cfg.Callback.Events) > maxCallbackEvents {
			return apperrors.Configuration("callback.events", fmt.Sprintf("callback events exceed maximum of %d", maxCallbackEvents))
		}
		for _, e := range cfg.Callback.Events {
			if !isEventType(e) {
				return apperrors.Configuration("callback.events", fmt.Sprintf("unknown event type %q", e))
			}
		}
	}

	return nil
}

func validateVariable(field, name string) error {
	if !identPattern.MatchString(name) {
		return apperrors.Configuration(field, "variable names must start with a letter or underscore and contain only letters, digits and underscores")
	}
	if strings.HasPrefix(name, ReservedPrefix) {
		return apperrors.Configuration(field, fmt.Sprintf("the %s prefix is reserved for built-in variables", ReservedPrefix))
	}
	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
