package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	daemonrun "github.com/tommyorndorff/icinga2/internal/cmd/daemon"
	cfgpkg "github.com/tommyorndorff/icinga2/internal/config"
)

// version is stamped by the build.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "icinga2",
		Short: "Icinga 2 event-relay bridge",
		Long:  "Relays monitoring events from the internal bus into Redis for external consumers.",
	}

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the bridge daemon",
		Long: "Runs the bridge: events arrive as JSON lines on stdin and are " +
			"republished into Redis, fanned out to registered subscribers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			applyFlags(cmd, &cfg)
			return daemonrun.Run(context.Background(), daemonrun.Options{Config: cfg})
		},
	}
	flags := daemonCmd.Flags()
	flags.StringP("config", "c", "", "path to config file (JSON or YAML)")
	flags.String("host", "", "redis host")
	flags.Int("port", 0, "redis port")
	flags.String("path", "", "redis unix socket path (takes precedence over host/port)")
	flags.String("password", "", "redis password")
	flags.Int("reconnect-interval", 0, "seconds between reconnect attempts")
	flags.Int("subscription-interval", 0, "seconds between subscription refreshes")
	flags.Int("event-ttl", 0, "seconds before stored event bodies expire")
	flags.String("key-prefix", "", "store key prefix")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (text|json)")
	rootCmd.AddCommand(daemonCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("icinga2 bridge", version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlags overlays explicitly set flags onto cfg, after file and env.
func applyFlags(cmd *cobra.Command, cfg *cfgpkg.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Redis.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Redis.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("path") {
		cfg.Redis.Path, _ = flags.GetString("path")
	}
	if flags.Changed("password") {
		cfg.Redis.Password, _ = flags.GetString("password")
	}
	if flags.Changed("reconnect-interval") {
		cfg.ReconnectIntervalSec, _ = flags.GetInt("reconnect-interval")
	}
	if flags.Changed("subscription-interval") {
		cfg.SubscriptionIntervalSec, _ = flags.GetInt("subscription-interval")
	}
	if flags.Changed("event-ttl") {
		cfg.EventTTLSec, _ = flags.GetInt("event-ttl")
	}
	if flags.Changed("key-prefix") {
		cfg.KeyPrefix, _ = flags.GetString("key-prefix")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
}
