package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// requiredEnvs returns the minimum env vars needed for LoadEnvConfig to succeed.
func requiredEnvs() map[string]string {
	return map[string]string{
		"DOHSW_ADMIN_TOKEN": "admin-secret",
	}
}

func TestLoadEnvConfig_Defaults(t *testing.T) {
	setEnvs(t, requiredEnvs())

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Network
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "0.0.0.0")
	assertEqual(t, "Port", cfg.Port, 5003)
	assertEqual(t, "APIMaxBodyBytes", cfg.APIMaxBodyBytes, 1<<20)
	assertEqual(t, "RequireRoot", cfg.RequireRoot, true)

	// Files
	assertEqual(t, "StateDir", cfg.StateDir, "/var/lib/dohswitch")
	assertEqual(t, "DBPath", cfg.DBPath, "/var/lib/dohswitch/history.db")
	assertEqual(t, "ProvidersFile", cfg.ProvidersFile, "/var/lib/dohswitch/doh_providers.json")

	// Forwarding daemon
	assertEqual(t, "ServiceFile", cfg.ServiceFile, "/etc/systemd/system/cloudflared.service")
	assertEqual(t, "ServiceName", cfg.ServiceName, "cloudflared.service")
	assertEqual(t, "DaemonBinary", cfg.DaemonBinary, "/usr/bin/cloudflared")
	assertEqual(t, "DaemonPort", cfg.DaemonPort, 53)

	// Sampling
	assertEqual(t, "TestInterval", cfg.TestInterval, 5*time.Second)
	assertEqual(t, "Retention", cfg.Retention, 6*time.Hour)
	assertEqual(t, "ProbeCount", cfg.ProbeCount, 3)
	assertEqual(t, "ProbeTimeout", cfg.ProbeTimeout, 2*time.Second)
	assertEqual(t, "DoHTimeout", cfg.DoHTimeout, 5*time.Second)
	assertEqual(t, "DoHProbeDomain", cfg.DoHProbeDomain, "example.com")
	assertEqual(t, "DoHProbeFormat", cfg.DoHProbeFormat, "wire")
	assertEqual(t, "PingPrivileged", cfg.PingPrivileged, false)
	assertEqual(t, "CheckReachable", cfg.CheckReachable, true)
	assertEqual(t, "HistoryLimit", cfg.HistoryLimit, 20)
	assertEqual(t, "BroadcastLimit", cfg.BroadcastLimit, 100)
	assertEqual(t, "TestResultsMax", cfg.TestResultsMax, 256)
	assertEqual(t, "BackupSchedule", cfg.BackupSchedule, "0 3 * * *")
	assertEqual(t, "InfluxEnabled", cfg.InfluxEnabled(), false)
}

func TestLoadEnvConfig_EnvOverrides(t *testing.T) {
	envs := requiredEnvs()
	envs["DOHSW_LISTEN_ADDRESS"] = "127.0.0.1"
	envs["DOHSW_PORT"] = "8053"
	envs["DOHSW_STATE_DIR"] = "/tmp/dohsw"
	envs["DOHSW_PROVIDERS_FILE"] = "/etc/dohswitch/providers.yaml"
	envs["DOHSW_TEST_INTERVAL"] = "10s"
	envs["DOHSW_RETENTION"] = "24h"
	envs["DOHSW_PROBE_COUNT"] = "5"
	envs["DOHSW_DOH_PROBE_FORMAT"] = "JSON"
	envs["DOHSW_PING_PRIVILEGED"] = "true"
	envs["DOHSW_REQUIRE_ROOT"] = "false"
	envs["DOHSW_CHECK_REACHABLE"] = "false"
	envs["DOHSW_BACKUP_SCHEDULE"] = ""
	envs["DOHSW_INFLUX_URL"] = "http://influx:8086"
	envs["DOHSW_INFLUX_ORG"] = "ops"
	envs["DOHSW_INFLUX_BUCKET"] = "doh"
	setEnvs(t, envs)

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "127.0.0.1")
	assertEqual(t, "Port", cfg.Port, 8053)
	assertEqual(t, "DBPath", cfg.DBPath, "/tmp/dohsw/history.db")
	assertEqual(t, "ProvidersFile", cfg.ProvidersFile, "/etc/dohswitch/providers.yaml")
	assertEqual(t, "TestInterval", cfg.TestInterval, 10*time.Second)
	assertEqual(t, "Retention", cfg.Retention, 24*time.Hour)
	assertEqual(t, "ProbeCount", cfg.ProbeCount, 5)
	assertEqual(t, "DoHProbeFormat", cfg.DoHProbeFormat, "json")
	assertEqual(t, "PingPrivileged", cfg.PingPrivileged, true)
	assertEqual(t, "RequireRoot", cfg.RequireRoot, false)
	assertEqual(t, "CheckReachable", cfg.CheckReachable, false)
	assertEqual(t, "BackupSchedule", cfg.BackupSchedule, "")
	assertEqual(t, "InfluxEnabled", cfg.InfluxEnabled(), true)

	pc := cfg.ProbeConfig()
	assertEqual(t, "ProbeConfig.PingCount", pc.PingCount, 5)
	assertEqual(t, "ProbeConfig.DoHFormat", string(pc.DoHFormat), "json")
}

func TestLoadEnvConfig_MissingAdminToken(t *testing.T) {
	// Ensure DOHSW_ADMIN_TOKEN is not set
	os.Unsetenv("DOHSW_ADMIN_TOKEN")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for missing DOHSW_ADMIN_TOKEN")
	}
	assertContains(t, err.Error(), "DOHSW_ADMIN_TOKEN must be defined (can be empty)")
}

func TestLoadLocalConfig_TokenOptional(t *testing.T) {
	os.Unsetenv("DOHSW_ADMIN_TOKEN")

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "ServiceName", cfg.ServiceName, "cloudflared.service")
}

func TestLoadEnvConfig_EmptyTokenAllowedWhenDefined(t *testing.T) {
	t.Setenv("DOHSW_ADMIN_TOKEN", "")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "AdminToken", cfg.AdminToken, "")
	assertEqual(t, "AuthEnabled", cfg.Settings().AuthEnabled, false)
}

func TestLoadEnvConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"empty_listen", "DOHSW_LISTEN_ADDRESS", "  ", "DOHSW_LISTEN_ADDRESS must not be empty"},
		{"port_range", "DOHSW_PORT", "70000", "DOHSW_PORT: port must be 1-65535, got 70000"},
		{"port_nan", "DOHSW_PORT", "abc", `DOHSW_PORT: invalid integer "abc"`},
		{"port_zero", "DOHSW_DAEMON_PORT", "0", "DOHSW_DAEMON_PORT: port must be 1-65535, got 0"},
		{"body_bytes", "DOHSW_API_MAX_BODY_BYTES", "-1", "DOHSW_API_MAX_BODY_BYTES: must be positive, got -1"},
		{"interval", "DOHSW_TEST_INTERVAL", "soon", `DOHSW_TEST_INTERVAL: invalid duration "soon"`},
		{"retention_zero", "DOHSW_RETENTION", "0s", "DOHSW_RETENTION must be positive"},
		{"probe_count", "DOHSW_PROBE_COUNT", "0", "DOHSW_PROBE_COUNT: must be positive, got 0"},
		{"format", "DOHSW_DOH_PROBE_FORMAT", "xml", `DOHSW_DOH_PROBE_FORMAT: invalid value "xml"`},
		{"domain", "DOHSW_DOH_PROBE_DOMAIN", "bad domain", "DOHSW_DOH_PROBE_DOMAIN:"},
		{"bool", "DOHSW_PING_PRIVILEGED", "maybe", `DOHSW_PING_PRIVILEGED: invalid boolean "maybe"`},
		{"cron", "DOHSW_BACKUP_SCHEDULE", "every day", `DOHSW_BACKUP_SCHEDULE: invalid cron expression "every day"`},
		{"ext", "DOHSW_PROVIDERS_FILE", "/etc/providers.toml", `DOHSW_PROVIDERS_FILE: unsupported extension ".toml"`},
		{"broadcast_lt_history", "DOHSW_BROADCAST_LIMIT", "10", "DOHSW_BROADCAST_LIMIT must be greater than or equal to DOHSW_HISTORY_LIMIT"},
		{"influx_partial", "DOHSW_INFLUX_URL", "http://influx:8086", "DOHSW_INFLUX_ORG and DOHSW_INFLUX_BUCKET are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, requiredEnvs())
			t.Setenv(tt.key, tt.val)

			_, err := LoadEnvConfig()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.val)
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadEnvConfig_AccumulatesErrors(t *testing.T) {
	setEnvs(t, requiredEnvs())
	t.Setenv("DOHSW_PORT", "0")
	t.Setenv("DOHSW_PROBE_COUNT", "-2")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	assertContains(t, err.Error(), "config validation failed:")
	assertContains(t, err.Error(), "DOHSW_PORT")
	assertContains(t, err.Error(), "DOHSW_PROBE_COUNT")
}

// --- test helpers ---

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
