package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"socialcache/pkg/config"
	"socialcache/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage socialcache configuration files.

Configuration is layered, highest priority first:
  - Command line flags
  - SOCIALCACHE_* environment variables (and .env files)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "socialcache.yaml"
	if len(args) > 0 {
		path = args[0]
	} else if configFile != "" {
		path = configFile
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "1. Edit the cache locations and engine limits")
	fmt.Fprintf(cmd.OutOrStdout(), "2. Run 'socialcache --config %s config validate'\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "3. Store account tokens with 'socialcache auth set'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var warnings []string
	if err := os.MkdirAll(cfg.Cache.RootDirectory, 0755); err != nil {
		warnings = append(warnings, fmt.Sprintf("cannot create cache root: %v", err))
	}
	if cfg.Engine.MaxConcurrent > 32 {
		warnings = append(warnings, "max_concurrent above 32 is likely to trip provider rate limits")
	}
	if cfg.Engine.MaxRedirects == 0 {
		warnings = append(warnings, "max_redirects is 0: redirect chains are unbounded")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings", strings.Join(warnings, "; "))
	}
	ui.PrintSuccess("Configuration is valid")
	fmt.Fprint(cmd.OutOrStdout(), describeConfig(cfg))
	return nil
}

// describeConfig summarizes the settings that shape a fetch run
func describeConfig(cfg *config.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Cache root: %s\n", cfg.Cache.RootDirectory)
	fmt.Fprintf(&b, "  Database: %s\n", cfg.Cache.DatabasePath)
	fmt.Fprintf(&b, "  Max concurrent: %d\n", cfg.Engine.MaxConcurrent)
	fmt.Fprintf(&b, "  Batch size: %d\n", cfg.Engine.MaxBatchSize)
	fmt.Fprintf(&b, "  Timeout: %s\n", cfg.Engine.Timeout)
	fmt.Fprintf(&b, "  Max body size: %d bytes\n", cfg.Engine.MaxBodySize)
	fmt.Fprintf(&b, "  Max redirects: %d\n", cfg.Engine.MaxRedirects)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		fmt.Fprintf(&b, "  Rate limit: %.2f req/s (burst %d)\n", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	} else {
		b.WriteString("  Rate limit: none\n")
	}
	fmt.Fprintf(&b, "  Log level: %s\n", cfg.Logging.Level)
	return b.String()
}
