package job

import (
	"fmt"
	"log/slog"
	"sbt/internal/apperrors"
	"sbt/internal/matrix"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// ApplyOverrides replaces default values with command-line key=value pairs.
// Values are read as TOML literals when possible (20, 1e-3, true) and as
// plain strings otherwise. Matrix values still take precedence.
func (c *Config) ApplyOverrides(pairs []string) error {
	if c.Defaults == nil {
		c.Defaults = make(map[string]any, len(pairs))
	}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return apperrors.Configuration("set", fmt.Sprintf("override %q must have the form key=value", pair))
		}
		key = strings.TrimSpace(key)
		if err := validateVariable("set."+key, key); err != nil {
			return err
		}

		c.Defaults[key] = parseLiteral(raw)
		if slices.Contains(c.Matrix.Names(), key) {
			slog.Warn("Override shadowed by matrix variable", "variable", key)
		}
	}
	return nil
}

func parseLiteral(raw string) any {
	var doc struct {
		V any `toml:"v"`
	}
	if _, err := toml.Decode("v = "+raw, &doc); err == nil && matrix.IsScalar(doc.V) {
		return doc.V
	}
	return raw
}
