package ingest

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CodAressss/orders-batch-service/internal/config"
)

// Policy holds validation policy loaded from .orders.yaml.
//
// The batch validator is liberal by default: order numbers only need to be
// alphanumeric with dashes or underscores. Operators that want the documented
// strict shape (^[A-Z][0-9]{3}$) opt in per deployment via this file.
type Policy struct {
	// StrictOrderNumbers switches the order-number rule from the liberal
	// alphanumeric shape to the strict ^[A-Z][0-9]{3}$ shape.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	StrictOrderNumbers bool `yaml:"strict_order_numbers"`

	// BusinessTimezone is the IANA zone used to compute "today" for the
	// delivery-date rule. Defaults to America/Lima.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	BusinessTimezone string `yaml:"business_timezone"`
}

// DefaultConfigPath is the default location for the policy file.
const DefaultConfigPath = ".orders.yaml"

// ConfigPathEnvVar is the environment variable name for a custom policy path.
const ConfigPathEnvVar = "ORDERS_POLICY_PATH"

// defaultBusinessTimezone is the business zone when none is configured.
const defaultBusinessTimezone = "America/Lima"

// LoadPolicy loads validation policy from a YAML file at the given path.
//
// Behavior:
//   - Returns the default policy (not an error) if the file doesn't exist
//   - Returns the default policy + logs a warning if the YAML is invalid
//   - Returns the populated policy on success
//
// The graceful degradation ensures the server can start without a policy
// file; the defaults match the wire contract.
func LoadPolicy(path string) (*Policy, error) {
	policy := defaultPolicy()

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Policy file not found, using defaults",
				slog.String("path", path))

			return policy, nil
		}

		slog.Warn("Failed to read policy file, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return policy, nil
	}

	if len(data) == 0 {
		return policy, nil
	}

	if err := yaml.Unmarshal(data, policy); err != nil {
		slog.Warn("Failed to parse policy file, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return defaultPolicy(), nil
	}

	if policy.BusinessTimezone == "" {
		policy.BusinessTimezone = defaultBusinessTimezone
	}

	return policy, nil
}

// LoadPolicyFromEnv loads the policy from the path in ORDERS_POLICY_PATH,
// falling back to ".orders.yaml" in the current directory.
func LoadPolicyFromEnv() (*Policy, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadPolicy(path)
}

// Location resolves the configured business timezone.
func (p *Policy) Location() (*time.Location, error) {
	zone := p.BusinessTimezone
	if zone == "" {
		zone = defaultBusinessTimezone
	}

	return time.LoadLocation(zone)
}

func defaultPolicy() *Policy {
	return &Policy{
		StrictOrderNumbers: false,
		BusinessTimezone:   defaultBusinessTimezone,
	}
}
