// Package config handles environment-based configuration loading and the
// effective settings view served by the API.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Resinat/dohswitch/internal/buildinfo"
	"github.com/Resinat/dohswitch/internal/probe"
)

// EnvConfig holds all environment-variable-driven settings. They are read
// once at startup.
type EnvConfig struct {
	// Network
	ListenAddress   string
	Port            int
	APIMaxBodyBytes int

	// Auth
	AdminToken  string
	RequireRoot bool

	// Files
	StateDir      string
	DBPath        string
	ProvidersFile string

	// Forwarding daemon
	ServiceFile  string
	ServiceName  string
	DaemonBinary string
	DaemonPort   int

	// Sampling
	TestInterval   time.Duration
	Retention      time.Duration
	ProbeCount     int
	ProbeTimeout   time.Duration
	DoHTimeout     time.Duration
	DoHProbeDomain string
	DoHProbeFormat string
	PingPrivileged bool
	CheckReachable bool
	HistoryLimit   int
	BroadcastLimit int
	TestResultsMax int
	BackupSchedule string

	// Export
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// InfluxEnabled reports whether sample export is configured.
func (c *EnvConfig) InfluxEnabled() bool { return c.InfluxURL != "" }

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any required variable is missing or any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	return loadEnvConfig(true)
}

// LoadLocalConfig is LoadEnvConfig for commands that do not serve the API:
// DOHSW_ADMIN_TOKEN may be left undefined.
func LoadLocalConfig() (*EnvConfig, error) {
	return loadEnvConfig(false)
}

func loadEnvConfig(requireToken bool) (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Network ---
	cfg.ListenAddress = strings.TrimSpace(envStr("DOHSW_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("DOHSW_PORT", 5003, &errs)
	cfg.APIMaxBodyBytes = envInt("DOHSW_API_MAX_BODY_BYTES", 1<<20, &errs)

	// --- Auth (must be defined; empty means auth disabled) ---
	adminToken, hasAdminToken := os.LookupEnv("DOHSW_ADMIN_TOKEN")
	cfg.AdminToken = adminToken
	cfg.RequireRoot = envBool("DOHSW_REQUIRE_ROOT", true, &errs)

	// --- Files ---
	cfg.StateDir = envStr("DOHSW_STATE_DIR", "/var/lib/dohswitch")
	cfg.DBPath = envStr("DOHSW_DB_PATH", filepath.Join(cfg.StateDir, "history.db"))
	cfg.ProvidersFile = envStr("DOHSW_PROVIDERS_FILE", filepath.Join(cfg.StateDir, "doh_providers.json"))

	// --- Forwarding daemon ---
	cfg.ServiceFile = envStr("DOHSW_SERVICE_FILE", "/etc/systemd/system/cloudflared.service")
	cfg.ServiceName = envStr("DOHSW_SERVICE_NAME", "cloudflared.service")
	cfg.DaemonBinary = envStr("DOHSW_DAEMON_BINARY", "/usr/bin/cloudflared")
	cfg.DaemonPort = envInt("DOHSW_DAEMON_PORT", 53, &errs)

	// --- Sampling ---
	cfg.TestInterval = envDuration("DOHSW_TEST_INTERVAL", 5*time.Second, &errs)
	cfg.Retention = envDuration("DOHSW_RETENTION", 6*time.Hour, &errs)
	cfg.ProbeCount = envInt("DOHSW_PROBE_COUNT", 3, &errs)
	cfg.ProbeTimeout = envDuration("DOHSW_PROBE_TIMEOUT", 2*time.Second, &errs)
	cfg.DoHTimeout = envDuration("DOHSW_DOH_TIMEOUT", 5*time.Second, &errs)
	cfg.DoHProbeDomain = strings.TrimSpace(envStr("DOHSW_DOH_PROBE_DOMAIN", "example.com"))
	cfg.DoHProbeFormat = strings.ToLower(strings.TrimSpace(envStr("DOHSW_DOH_PROBE_FORMAT", string(probe.FormatWire))))
	cfg.PingPrivileged = envBool("DOHSW_PING_PRIVILEGED", false, &errs)
	cfg.CheckReachable = envBool("DOHSW_CHECK_REACHABLE", true, &errs)
	cfg.HistoryLimit = envInt("DOHSW_HISTORY_LIMIT", 20, &errs)
	cfg.BroadcastLimit = envInt("DOHSW_BROADCAST_LIMIT", 100, &errs)
	cfg.TestResultsMax = envInt("DOHSW_TEST_RESULTS_MAX", 256, &errs)
	cfg.BackupSchedule = strings.TrimSpace(envStr("DOHSW_BACKUP_SCHEDULE", "0 3 * * *"))

	// --- Export ---
	cfg.InfluxURL = strings.TrimSpace(envStr("DOHSW_INFLUX_URL", ""))
	cfg.InfluxToken = envStr("DOHSW_INFLUX_TOKEN", "")
	cfg.InfluxOrg = envStr("DOHSW_INFLUX_ORG", "")
	cfg.InfluxBucket = envStr("DOHSW_INFLUX_BUCKET", "")

	// --- Validation ---
	if requireToken && !hasAdminToken {
		errs = append(errs, "DOHSW_ADMIN_TOKEN must be defined (can be empty)")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "DOHSW_LISTEN_ADDRESS must not be empty")
	}
	validatePort("DOHSW_PORT", cfg.Port, &errs)
	validatePositive("DOHSW_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	validatePort("DOHSW_DAEMON_PORT", cfg.DaemonPort, &errs)

	if strings.TrimSpace(cfg.StateDir) == "" {
		errs = append(errs, "DOHSW_STATE_DIR must not be empty")
	}
	switch strings.ToLower(filepath.Ext(cfg.ProvidersFile)) {
	case ".json", ".yaml", ".yml":
	default:
		errs = append(errs, fmt.Sprintf("DOHSW_PROVIDERS_FILE: unsupported extension %q (allowed: .json, .yaml, .yml)", filepath.Ext(cfg.ProvidersFile)))
	}
	if cfg.ServiceName == "" {
		errs = append(errs, "DOHSW_SERVICE_NAME must not be empty")
	}
	if cfg.DaemonBinary == "" {
		errs = append(errs, "DOHSW_DAEMON_BINARY must not be empty")
	}

	validatePositiveDuration("DOHSW_TEST_INTERVAL", cfg.TestInterval, &errs)
	validatePositiveDuration("DOHSW_RETENTION", cfg.Retention, &errs)
	validatePositive("DOHSW_PROBE_COUNT", cfg.ProbeCount, &errs)
	validatePositiveDuration("DOHSW_PROBE_TIMEOUT", cfg.ProbeTimeout, &errs)
	validatePositiveDuration("DOHSW_DOH_TIMEOUT", cfg.DoHTimeout, &errs)
	if cfg.DoHProbeDomain == "" {
		errs = append(errs, "DOHSW_DOH_PROBE_DOMAIN must not be empty")
	} else if _, err := probe.NormalizeDomain(cfg.DoHProbeDomain); err != nil {
		errs = append(errs, fmt.Sprintf("DOHSW_DOH_PROBE_DOMAIN: %v", err))
	}
	if !probe.Format(cfg.DoHProbeFormat).IsValid() {
		errs = append(errs, fmt.Sprintf(
			"DOHSW_DOH_PROBE_FORMAT: invalid value %q (allowed: %s, %s)",
			cfg.DoHProbeFormat, probe.FormatWire, probe.FormatJSON,
		))
	}
	validatePositive("DOHSW_HISTORY_LIMIT", cfg.HistoryLimit, &errs)
	validatePositive("DOHSW_BROADCAST_LIMIT", cfg.BroadcastLimit, &errs)
	validatePositive("DOHSW_TEST_RESULTS_MAX", cfg.TestResultsMax, &errs)
	if cfg.BroadcastLimit < cfg.HistoryLimit {
		errs = append(errs, "DOHSW_BROADCAST_LIMIT must be greater than or equal to DOHSW_HISTORY_LIMIT")
	}
	if cfg.BackupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.BackupSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("DOHSW_BACKUP_SCHEDULE: invalid cron expression %q: %v", cfg.BackupSchedule, err))
		}
	}
	if cfg.InfluxEnabled() && (cfg.InfluxOrg == "" || cfg.InfluxBucket == "") {
		errs = append(errs, "DOHSW_INFLUX_ORG and DOHSW_INFLUX_BUCKET are required when DOHSW_INFLUX_URL is set")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// ProbeConfig derives the prober settings.
func (c *EnvConfig) ProbeConfig() probe.Config {
	return probe.Config{
		PingCount:      c.ProbeCount,
		PingTimeout:    c.ProbeTimeout,
		PingPrivileged: c.PingPrivileged,
		DoHTimeout:     c.DoHTimeout,
		DoHProbeDomain: c.DoHProbeDomain,
		DoHFormat:      probe.Format(c.DoHProbeFormat),
		UserAgent:      "dohswitch/" + buildinfo.Version,
	}
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envBool(key string, defaultVal bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validatePositiveDuration(name string, value time.Duration, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be positive", name))
	}
}
