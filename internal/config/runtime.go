package config

// Settings is the effective configuration served by GET /system/config.
// Secrets are omitted.
type Settings struct {
	ListenAddress string `json:"listen_address"`
	Port          int    `json:"port"`
	AuthEnabled   bool   `json:"auth_enabled"`
	RequireRoot   bool   `json:"require_root"`

	DBPath        string `json:"db_path"`
	ProvidersFile string `json:"providers_file"`
	ServiceFile   string `json:"service_file"`
	ServiceName   string `json:"service_name"`
	DaemonBinary  string `json:"daemon_binary"`
	DaemonPort    int    `json:"daemon_port"`

	TestInterval   Duration `json:"test_interval"`
	Retention      Duration `json:"retention"`
	ProbeCount     int      `json:"probe_count"`
	ProbeTimeout   Duration `json:"probe_timeout"`
	DoHTimeout     Duration `json:"doh_timeout"`
	DoHProbeDomain string   `json:"doh_probe_domain"`
	DoHProbeFormat string   `json:"doh_probe_format"`
	PingPrivileged bool     `json:"ping_privileged"`
	CheckReachable bool     `json:"check_reachable"`
	HistoryLimit   int      `json:"history_limit"`
	BroadcastLimit int      `json:"broadcast_limit"`
	BackupSchedule string   `json:"backup_schedule"`
	InfluxEnabled  bool     `json:"influx_enabled"`
}

// Settings returns the public view of c.
func (c *EnvConfig) Settings() Settings {
	return Settings{
		ListenAddress: c.ListenAddress,
		Port:          c.Port,
		AuthEnabled:   c.AdminToken != "",
		RequireRoot:   c.RequireRoot,

		DBPath:        c.DBPath,
		ProvidersFile: c.ProvidersFile,
		ServiceFile:   c.ServiceFile,
		ServiceName:   c.ServiceName,
		DaemonBinary:  c.DaemonBinary,
		DaemonPort:    c.DaemonPort,

		TestInterval:   Duration(c.TestInterval),
		Retention:      Duration(c.Retention),
		ProbeCount:     c.ProbeCount,
		ProbeTimeout:   Duration(c.ProbeTimeout),
		DoHTimeout:     Duration(c.DoHTimeout),
		DoHProbeDomain: c.DoHProbeDomain,
		DoHProbeFormat: c.DoHProbeFormat,
		PingPrivileged: c.PingPrivileged,
		CheckReachable: c.CheckReachable,
		HistoryLimit:   c.HistoryLimit,
		BroadcastLimit: c.BroadcastLimit,
		BackupSchedule: c.BackupSchedule,
		InfluxEnabled:  c.InfluxEnabled(),
	}
}
