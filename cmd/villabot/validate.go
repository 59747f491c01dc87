package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/internal/core"
	"github.com/spf13/cobra"
)

var (
	validateConfigFile string
	validateJSON       bool
)

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Config    string   `json:"config"`
	Bots      int      `json:"bots"`
	Webhook   int      `json:"webhook"`
	Websocket int      `json:"websocket"`
	AMQP      bool     `json:"amqp"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate villabot configuration file",
	Long: `Validate the villabot configuration file without connecting.

This command checks:
  - YAML syntax and environment variable references
  - Required bot credentials
  - Transport settings (callback_url or test_villa_id)
  - Public keys (PEM, RSA)

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	Run: func(cmd *cobra.Command, args []string) {
		path := validateConfigFile
		if path == "" {
			path = findConfig()
		}
		if path == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No configuration file found")
			fmt.Fprintln(cmd.OutOrStdout(), "\nSpecify a config file with --config or ensure one exists at:")
			for _, loc := range configLocations() {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", loc)
			}
			os.Exit(1)
		}

		result := validateFile(path)
		writeValidationResult(cmd.OutOrStdout(), result, validateJSON)
		if !result.Valid {
			os.Exit(1)
		}
	},
}

func configLocations() []string {
	return []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/villabot/config.yaml"),
		"/etc/villabot/config.yaml",
	}
}

func findConfig() string {
	for _, loc := range configLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// validateFile loads path and checks what LoadConfig cannot: that every
// public key parses and that settings are not silently unsafe.
func validateFile(path string) ValidationResult {
	result := ValidationResult{Config: path}

	cfg, err := core.LoadConfig(path)
	if err != nil {
		result.Errors = []string{err.Error()}
		return result
	}

	result.Bots = len(cfg.Bots)
	result.AMQP = cfg.AMQP.Enabled
	for _, bc := range cfg.Bots {
		if bc.IsWebhook() {
			result.Webhook++
		} else {
			result.Websocket++
		}

		if _, err := bot.New(bc.Info(), cfg.APIBaseURL, nil); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		if bc.IsWebhook() && bc.VerifyEvent != nil && !*bc.VerifyEvent {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("bot %s accepts callbacks without signature verification", bc.BotID))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func writeValidationResult(w io.Writer, result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(w, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(w, string(output))
		return
	}

	if result.Valid {
		fmt.Fprintln(w, "Configuration is valid")
		fmt.Fprintf(w, "  - Config: %s\n", result.Config)
		fmt.Fprintf(w, "  - Bots: %d (webhook %d, websocket %d)\n", result.Bots, result.Webhook, result.Websocket)
		fmt.Fprintf(w, "  - AMQP sink: %v\n", result.AMQP)
	} else {
		fmt.Fprintln(w, "Configuration validation failed:")
		fmt.Fprintln(w, "\nErrors:")
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}
