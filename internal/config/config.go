/******************************************************************************
 *
 *  Description :
 *
 *    Process configuration: a JSON-with-comments file (read the way
 *    tinode-db/main.go reads tinode.conf) plus flag overrides for the
 *    values an operator commonly needs to override per invocation.
 *
 *****************************************************************************/

package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tinode/jsonco"
)

// Config is the top-level process configuration.
type Config struct {
	// Listen is the address the websocket listener binds to.
	Listen string `json:"listen"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
	// MetricsListen is the address the Prometheus /metrics endpoint binds
	// to. Empty disables the metrics server.
	MetricsListen string `json:"metrics_listen"`
	// IdleUnloadAfterSec is how long a proxy may sit idle before the
	// directory disposes of it.
	IdleUnloadAfterSec int `json:"idle_unload_after_sec"`
	// Authz carries the raw JSON blob handed to the selected authorizer's
	// Init function, if join authorization is enabled.
	Authz json.RawMessage `json:"authz"`
	// AuthzScheme selects which join authorizer Authz configures: "jwt" or
	// "legacy_token". Defaults to "jwt".
	AuthzScheme string `json:"authz_scheme"`
}

// Default returns a Config populated with the same defaults the flag
// package below would apply with no file present.
func Default() Config {
	return Config{
		Listen:             ":6060",
		LogLevel:           "info",
		MetricsListen:      ":6061",
		IdleUnloadAfterSec: 60,
		AuthzScheme:        "jwt",
	}
}

// Load reads path as JSON-with-comments into a copy of Default(). A
// missing file is not an error; it is equivalent to an empty config.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: failed to open %q: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(jsonco.New(file)).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse %q: %w", path, err)
	}
	return cfg, nil
}

// ParseFlags applies command-line overrides on top of cfg, in the style
// of tinode-db/main.go's flag.String/flag.Bool calls, and returns the
// resulting Config. args is the command line left over after the
// process's own flags are parsed (cmd/sessionproxyd passes flag.Args()).
func ParseFlags(cfg Config, args []string) (Config, error) {
	fs := flag.NewFlagSet("sessionproxyd", flag.ContinueOnError)
	listen := fs.String("listen", cfg.Listen, "address to listen for websocket connections")
	logLevel := fs.String("log_level", cfg.LogLevel, "log level: debug, info, warn, error")
	metricsListen := fs.String("metrics_listen", cfg.MetricsListen, "address to serve /metrics on, empty to disable")
	idleUnload := fs.Int("idle_unload_after_sec", cfg.IdleUnloadAfterSec, "seconds a session may sit idle before unloading")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.Listen = *listen
	cfg.LogLevel = *logLevel
	cfg.MetricsListen = *metricsListen
	cfg.IdleUnloadAfterSec = *idleUnload
	return cfg, nil
}
