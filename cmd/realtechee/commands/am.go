package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/realtechee/platform/am"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage platform configuration",
	Long: `am — Manage platform configuration ("I am")

Display and inspect RealTechee configuration settings.

Configuration sources (in order of precedence):
1. Environment variables (REALTECHEE_* prefix)
2. Project config (./realtechee.toml, searched up the tree)
3. User config (~/.realtechee/realtechee.toml)
4. Default values

Examples:
  realtechee am show                  # Show current configuration
  realtechee am show --format json    # Show configuration in JSON format
  realtechee am get database.path     # Get specific config value
  realtechee am where                 # Show the config file cascade`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration merged from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, server.port)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files were checked.

Lists all configuration sources in order of precedence, showing
which files exist and which are missing.`,
	RunE: runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	loaded, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Mask secrets before printing; output may end up in tickets or logs.
	cfg := *loaded
	cfg.Server.AdminAPIKey = maskSecret(cfg.Server.AdminAPIKey)
	cfg.DataAPI.APIKey = maskSecret(cfg.DataAPI.APIKey)
	cfg.Notify.Email.APIKey = maskSecret(cfg.Notify.Email.APIKey)
	cfg.Notify.SMS.AccountSID = maskSecret(cfg.Notify.SMS.AccountSID)
	cfg.Notify.SMS.AuthToken = maskSecret(cfg.Notify.SMS.AuthToken)

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Printf("# RealTechee configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# RealTechee configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := am.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}

	fmt.Println(v.Get(key))
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	homeDir, _ := os.UserHomeDir()

	fmt.Println("Configuration cascade (lowest to highest precedence):")
	fmt.Println()

	printConfigSource("User config", filepath.Join(homeDir, ".realtechee", "realtechee.toml"))

	if projectPath := am.FindProjectConfig(); projectPath != "" {
		printConfigSource("Project config", projectPath)
	} else {
		fmt.Printf("  %-15s %s (none found)\n", "Project config:", "./realtechee.toml")
	}

	fmt.Printf("  %-15s REALTECHEE_* prefix\n", "Environment:")
	return nil
}

// maskSecret keeps a short prefix so operators can tell which key is loaded.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:4] + "********"
}

func printConfigSource(label, path string) {
	status := "missing"
	if _, err := os.Stat(path); err == nil {
		status = "found"
	}
	fmt.Printf("  %-15s %s (%s)\n", label+":", path, status)
}
