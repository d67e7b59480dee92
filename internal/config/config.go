package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

// Config is the process-wide configuration for a routecache instance,
// loaded from an optional YAML file overlaid by env vars (spec §6).
type Config struct {
	Service     ServiceConfig     `koanf:"service"`
	Store       StoreConfig       `koanf:"store"`
	Poll        PollConfig        `koanf:"poll"`
	Device      DeviceConfig      `koanf:"device"`
	Inventory   InventoryConfig   `koanf:"inventory"`
	Postgres    PostgresConfig    `koanf:"postgres"`
	DiffPublish DiffPublishConfig `koanf:"diff_publish"`
	Retention   RetentionConfig   `koanf:"retention"`
}

// RetentionConfig only applies to the postgres backend's daily-
// partitioned archive tables (internal/snapstore/pgstore).
type RetentionConfig struct {
	Days     int    `koanf:"days"`
	Timezone string `koanf:"timezone"`
}

// DiffPublishConfig configures the optional Kafka export of each
// cycle's diff reports (internal/diffpublish). Disabled by default;
// spec §6 names no env vars for it since publishing is an additional
// export sink, not part of the core snapshot/diff contract.
type DiffPublishConfig struct {
	Enabled  bool       `koanf:"enabled"`
	Brokers  []string   `koanf:"brokers"`
	Topic    string     `koanf:"topic"`
	ClientID string     `koanf:"client_id"`
	TLS      TLSConfig  `koanf:"tls"`
	SASL     SASLConfig `koanf:"sasl"`
}

type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

// BuildTLSConfig mirrors the teacher's kafka TLS construction, adapted
// from its KafkaConfig to routecache's DiffPublishConfig.
func (d *DiffPublishConfig) BuildTLSConfig() (*tls.Config, error) {
	if !d.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if d.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(d.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if d.TLS.CertFile != "" && d.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(d.TLS.CertFile, d.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// BuildSASLMechanism mirrors the teacher's kafka SASL construction.
func (d *DiffPublishConfig) BuildSASLMechanism() sasl.Mechanism {
	if !d.SASL.Enabled {
		return nil
	}
	switch strings.ToUpper(d.SASL.Mechanism) {
	case "PLAIN":
		return plain.Auth{User: d.SASL.Username, Pass: d.SASL.Password}.AsMechanism()
	default:
		return nil
	}
}

type ServiceConfig struct {
	InstanceID string `koanf:"instance_id"`
	HTTPListen string `koanf:"http_listen"`
	PromPort   int    `koanf:"prom_port"`
	LogLevel   string `koanf:"log_level"`
}

// StoreConfig selects and configures the snapstore backend. Backend is
// "fs" (default) or "postgres"; SnapDir is only used by the fs backend.
type StoreConfig struct {
	Backend string `koanf:"backend"`
	SnapDir string `koanf:"snap_dir"`
}

type PollConfig struct {
	IntervalSeconds int `koanf:"interval_seconds"`
	MaxConcurrency  int `koanf:"max_concurrency"`
}

// DeviceConfig holds the device-transport and credential settings
// shared across every inventory entry.
type DeviceConfig struct {
	UseNXAPI    bool   `koanf:"use_nxapi"`
	NXAPIScheme string `koanf:"nxapi_scheme"`
	NXAPIPort   int    `koanf:"nxapi_port"`
	NXAPIVerify bool   `koanf:"nxapi_verify"`
	NetopsUser  string `koanf:"netops_user"`
	NetopsPass  string `koanf:"netops_pass"`
}

// InventoryConfig selects and configures the device inventory source.
type InventoryConfig struct {
	UseNetbox bool   `koanf:"use_netbox"`
	NetboxURL string `koanf:"netbox_url"`
	NBToken   string `koanf:"nb_token"`
	// Static lists devices directly when UseNetbox is false.
	Static []StaticDevice `koanf:"static"`
}

type StaticDevice struct {
	Name       string   `koanf:"name"`
	Host       string   `koanf:"host"`
	DeviceType string   `koanf:"device_type"`
	VRFs       []string `koanf:"vrfs"`
	AFIs       []string `koanf:"afis"`
}

// PostgresConfig is only consulted when Store.Backend is "postgres".
type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

// Load reads an optional YAML file at path, overlays unprefixed env
// vars, applies defaults, and validates the result. Env var naming
// follows spec §6 directly for the well-known settings (SNAPDIR,
// POLL_INTERVAL_SEC, PROM_PORT, USE_NXAPI, NXAPI_SCHEME, NXAPI_PORT,
// NXAPI_VERIFY, NETOPS_USER, NETOPS_PASS, USE_NETBOX, NB_URL, NB_TOKEN).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", mapEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID: "routecache-1",
			HTTPListen: ":8080",
			PromPort:   9108,
			LogLevel:   "info",
		},
		Store: StoreConfig{
			Backend: "fs",
			SnapDir: "./route_snaps",
		},
		Poll: PollConfig{
			IntervalSeconds: 60,
			MaxConcurrency:  16,
		},
		Device: DeviceConfig{
			NXAPIScheme: "https",
			NXAPIPort:   443,
			NXAPIVerify: true,
		},
		Postgres: PostgresConfig{
			MaxConns: 20,
			MinConns: 2,
		},
		DiffPublish: DiffPublishConfig{
			ClientID: "routecache",
		},
		Retention: RetentionConfig{
			Days:     30,
			Timezone: "UTC",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.DiffPublish.Brokers) == 1 && strings.Contains(cfg.DiffPublish.Brokers[0], ",") {
		cfg.DiffPublish.Brokers = strings.Split(cfg.DiffPublish.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mapEnvKey maps the flat spec §6 env var names onto the config tree's
// dotted keys. Unrecognized env vars are only lowercased; Unmarshal
// ignores keys with no matching struct field.
func mapEnvKey(s string) string {
	switch s {
	case "SNAPDIR":
		return "store.snap_dir"
	case "POLL_INTERVAL_SEC":
		return "poll.interval_seconds"
	case "PROM_PORT":
		return "service.prom_port"
	case "USE_NXAPI":
		return "device.use_nxapi"
	case "NXAPI_SCHEME":
		return "device.nxapi_scheme"
	case "NXAPI_PORT":
		return "device.nxapi_port"
	case "NXAPI_VERIFY":
		return "device.nxapi_verify"
	case "NETOPS_USER":
		return "device.netops_user"
	case "NETOPS_PASS":
		return "device.netops_pass"
	case "USE_NETBOX":
		return "inventory.use_netbox"
	case "NB_URL":
		return "inventory.netbox_url"
	case "NB_TOKEN":
		return "inventory.nb_token"
	case "POSTGRES_DSN":
		return "postgres.dsn"
	default:
		return strings.ToLower(s)
	}
}

func (c *Config) Validate() error {
	if c.Store.Backend != "fs" && c.Store.Backend != "postgres" {
		return fmt.Errorf("config: store.backend must be \"fs\" or \"postgres\" (got %q)", c.Store.Backend)
	}
	if c.Store.Backend == "fs" && c.Store.SnapDir == "" {
		return fmt.Errorf("config: store.snap_dir is required for the fs backend")
	}
	if c.Store.Backend == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required for the postgres backend")
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("config: poll.interval_seconds must be > 0 (got %d)", c.Poll.IntervalSeconds)
	}
	if c.Poll.MaxConcurrency <= 0 {
		return fmt.Errorf("config: poll.max_concurrency must be > 0 (got %d)", c.Poll.MaxConcurrency)
	}
	if c.Service.PromPort <= 0 || c.Service.PromPort > 65535 {
		return fmt.Errorf("config: service.prom_port must be a valid port (got %d)", c.Service.PromPort)
	}
	if c.Inventory.UseNetbox {
		if c.Inventory.NetboxURL == "" {
			return fmt.Errorf("config: inventory.netbox_url is required when use_netbox is true")
		}
		if c.Inventory.NBToken == "" {
			return fmt.Errorf("config: inventory.nb_token is required when use_netbox is true")
		}
	} else if len(c.Inventory.Static) == 0 {
		return fmt.Errorf("config: inventory.static must list at least one device when use_netbox is false")
	}
	if c.Device.UseNXAPI {
		if c.Device.NetopsUser == "" || c.Device.NetopsPass == "" {
			return fmt.Errorf("config: device.netops_user and device.netops_pass are required when use_nxapi is true")
		}
	}
	if c.Postgres.MaxConns <= 0 {
		return fmt.Errorf("config: postgres.max_conns must be > 0 (got %d)", c.Postgres.MaxConns)
	}
	if c.Postgres.MinConns < 0 {
		return fmt.Errorf("config: postgres.min_conns must be >= 0 (got %d)", c.Postgres.MinConns)
	}
	if c.DiffPublish.Enabled {
		if len(c.DiffPublish.Brokers) == 0 {
			return fmt.Errorf("config: diff_publish.brokers is required when diff_publish.enabled is true")
		}
		if c.DiffPublish.Topic == "" {
			return fmt.Errorf("config: diff_publish.topic is required when diff_publish.enabled is true")
		}
	}
	if c.Store.Backend == "postgres" {
		if c.Retention.Days <= 0 {
			return fmt.Errorf("config: retention.days must be > 0 (got %d)", c.Retention.Days)
		}
		if _, err := time.LoadLocation(c.Retention.Timezone); err != nil {
			return fmt.Errorf("config: retention.timezone is invalid: %w", err)
		}
	}
	return nil
}

// PollInterval returns the configured cycle interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// ParseBool mirrors the permissive env-var boolean parsing conventions
// (spec §6: "USE_NXAPI ... (bool)") rather than requiring "true"/"false"
// exactly.
func ParseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
