package config

import (
	"flag"
	"os"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/flagx"
)

// parseFlags populates selected client Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   server base URL (e.g., "http://127.0.0.1:8080")
//	-n string   device name
//	-y string   device type (desktop, cli, editor, ...)
//	-d string   SQLite DSN for the local database
//	-k string   master key (64 hex chars)
//	-P          production mode (strict config checks)
//	-w int      connection attempt timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-n", "-y", "-d", "-k", "-P", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerEndpointAddr, "a", config.ServerEndpointAddr, "server base URL")
	fs.StringVar(&config.DeviceName, "n", config.DeviceName, "device name")
	fs.StringVar(&config.DeviceType, "y", config.DeviceType, "device type")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "local database DSN")
	fs.StringVar(&config.MasterKey, "k", config.MasterKey, "master key (hex)")
	fs.BoolVar(&config.Production, "P", config.Production, "production mode")

	connectTimeout := fs.Int("w", int(config.ConnectTimeout.Seconds()), "connect timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ConnectTimeout = time.Duration(*connectTimeout) * time.Second
}
