package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	LogFile  string         `yaml:"log_file"`
	GrpcHost string         `yaml:"grpc_host"`
	GrpcPort int            `yaml:"grpc_port"`
	Storage  MStorageConfig `yaml:"storage"`
	Network  MNetworkConfig `yaml:"network"`
	Lookup   MLookupConfig  `yaml:"lookup"`
	Widget   MWidgetConfig  `yaml:"widget"`
	Alerts   MAlertsConfig  `yaml:"alerts"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite, postgres or memory
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	Schema             string `yaml:"schema"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

type MLookupConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"` // usually provided through FMP_API_KEY
	RequestTimeout int    `yaml:"timeout"`
}

type MWidgetConfig struct {
	DebounceMs     int    `yaml:"debounce_ms"`
	MinQueryLength int    `yaml:"min_query_length"`
	MaxSuggestions int    `yaml:"max_suggestions"`
	DuplicateScope string `yaml:"duplicate_scope"` // session_and_saved or session_only
	AllowWithdraw  *bool  `yaml:"allow_withdraw"`
	IdleTimeout    int    `yaml:"idle_timeout"` // seconds without activity before a widget is closed
}

type MAlertsConfig struct {
	Enabled        bool        `yaml:"enabled"`
	Token          string      `yaml:"token"` // usually provided through ALERT_TOKEN
	RatioThreshold float64     `yaml:"ratio_threshold"`
	RunAt          string      `yaml:"run_at"` // HH:MM in the exchange timezone
	Exchange       string      `yaml:"exchange"`
	Notifier       string      `yaml:"notifier"` // smtp or ntfy
	SMTP           MSMTPConfig `yaml:"smtp"`
	Ntfy           MNtfyConfig `yaml:"ntfy"`
}

type MSMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Sender   string `yaml:"sender"`
	Password string `yaml:"password"` // usually provided through SMTP_PASSWORD
	Team     string `yaml:"team"`
}

type MNtfyConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// -----------------------------------------------------------------------------

// WithdrawAllowed reports whether pending selections may be withdrawn in-session.
func (w MWidgetConfig) WithdrawAllowed() bool {
	return w.AllowWithdraw == nil || *w.AllowWithdraw
}
