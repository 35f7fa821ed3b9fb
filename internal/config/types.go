package config

// Config is the root configuration for OpenCanvas.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Canvas  CanvasConfig  `yaml:"canvas,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "auto" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// StorageConfig controls persistence.
type StorageConfig struct {
	// Path is the SQLite database file. Empty means <data>/opencanvas.db.
	Path string `yaml:"path,omitempty"`
	// ViewportCacheDays is the age threshold after which locally cached
	// viewport entries are purged.
	ViewportCacheDays int `yaml:"viewportCacheDays,omitempty"`
}

// CanvasConfig holds canvas behavior defaults.
type CanvasConfig struct {
	// GridPadding is the content-space gap kept around agents during
	// automatic placement.
	GridPadding float64 `yaml:"gridPadding,omitempty"`
	// DefaultName is the name given to a user's idempotent default canvas.
	DefaultName string `yaml:"defaultName,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File  string `yaml:"file,omitempty"`
}
