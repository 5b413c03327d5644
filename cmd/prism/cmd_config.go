// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prismconfig "github.com/teradata-labs/prism/pkg/config"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Prism configuration",
	Long:  `Manage configuration files and secrets for Prism.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate example configuration file",
	Long:  `Generate an example prism.yaml configuration file in ~/.prism/`,
	Run:   runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration (merged from all sources).`,
	Run:   runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a non-sensitive configuration value in ~/.prism/prism.yaml.

For sensitive values (API keys, passwords), use 'prism config set-key' instead.

Examples:
  prism config set llm.provider anthropic
  prism config set llm.model claude-sonnet-4-5
  prism config set schema.refresh_cron "0 3 * * *"
  prism config set sql.max_rows 500
  prism config set log.level debug`,
	Args: cobra.ExactArgs(2),
	Run:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Long: `Get a configuration value from ~/.prism/prism.yaml.

Examples:
  prism config get llm.provider
  prism config get sql.max_rows`,
	Args: cobra.ExactArgs(1),
	Run:  runConfigGet,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [key-name]",
	Short: "Save a secret to the system keyring",
	Long: `Save a secret to the system keyring securely.

The value is stored in your system's secure credential storage
(Keychain on macOS, Credential Manager on Windows, Secret Service on Linux).

Run 'prism config list-keys' to see available key names.`,
	Args: cobra.ExactArgs(1),
	Run:  runConfigSetKey,
}

var configGetKeyCmd = &cobra.Command{
	Use:   "get-key [key-name]",
	Short: "Retrieve a secret from the system keyring",
	Long:  `Retrieve a secret from the system keyring (shown masked, for verification).`,
	Args:  cobra.ExactArgs(1),
	Run:   runConfigGetKey,
}

var configDeleteKeyCmd = &cobra.Command{
	Use:   "delete-key [key-name]",
	Short: "Delete a secret from the system keyring",
	Long:  `Remove a secret from the system keyring.`,
	Args:  cobra.ExactArgs(1),
	Run:   runConfigDeleteKey,
}

var configListKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List available secret keys",
	Long:  `List all secret keys that can be stored in the keyring.`,
	Run:   runConfigListKeys,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configGetKeyCmd)
	configCmd.AddCommand(configDeleteKeyCmd)
	configCmd.AddCommand(configListKeysCmd)
}

func configFilePath() string {
	return filepath.Join(prismconfig.GetPrismDataDir(), "prism.yaml")
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFilePath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file already exists: %s\n", configPath)
		fmt.Print("Overwrite? (y/N): ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	if err := os.WriteFile(configPath, []byte(GenerateExampleConfig()), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Config file created: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Save your LLM API key:")
	fmt.Println("   prism config set-key llm_api_key")
	fmt.Println("2. Point Prism at your database:")
	fmt.Println("   prism config set-key database_url")
	fmt.Println("3. Build the schema index:")
	fmt.Println("   prism index build")
	fmt.Println("4. Start the server:")
	fmt.Println("   prism serve")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()

	fmt.Println("Server:")
	fmt.Printf("  Host: %s\n", config.Server.Host)
	fmt.Printf("  Port: %d\n", config.Server.Port)
	fmt.Printf("  TLS Mode: %s\n", orDefault(config.Server.TLS.Mode, "none"))
	fmt.Println()

	fmt.Println("Database:")
	if config.Database.URL != "" {
		fmt.Printf("  URL: %s\n", maskDSN(config.Database.URL))
	} else {
		fmt.Printf("  Host: %s:%d\n", config.Database.Host, config.Database.Port)
		fmt.Printf("  Name: %s\n", config.Database.Name)
		fmt.Printf("  User: %s\n", config.Database.User)
	}
	fmt.Println()

	fmt.Println("LLM:")
	fmt.Printf("  Provider: %s\n", config.LLM.Provider)
	fmt.Printf("  Model: %s\n", config.LLM.Model)
	if config.LLM.Endpoint != "" {
		fmt.Printf("  Endpoint: %s\n", config.LLM.Endpoint)
	}
	if config.LLM.APIKey != "" {
		fmt.Printf("  API Key: %s\n", maskSecret(config.LLM.APIKey))
	} else {
		fmt.Printf("  API Key: (not set)\n")
	}
	fmt.Printf("  Temperature: %.1f\n", config.LLM.Temperature)
	fmt.Printf("  Max Tokens: %d\n", config.LLM.MaxTokens)
	fmt.Println()

	fmt.Println("Embedding:")
	if config.Embedding.Local {
		fmt.Printf("  Backend: local (dim %d)\n", config.Embedding.Dim)
	} else {
		fmt.Printf("  Model: %s\n", config.Embedding.Model)
		if config.Embedding.APIKey != "" {
			fmt.Printf("  API Key: %s\n", maskSecret(config.Embedding.APIKey))
		} else {
			fmt.Printf("  API Key: (not set)\n")
		}
	}
	fmt.Printf("  Index Dir: %s\n", config.Embedding.Dir)
	fmt.Println()

	fmt.Println("SQL:")
	fmt.Printf("  Max Rows: %d\n", config.SQL.MaxRows)
	fmt.Printf("  Timeout: %d ms\n", config.SQL.TimeoutMS)
	fmt.Println()

	fmt.Println("Rate:")
	fmt.Printf("  Per Client: %d/min\n", config.Rate.PerMinute)
	fmt.Printf("  Per IP: %d/min\n", config.Rate.IPPerMinute)
	fmt.Println()

	fmt.Println("Logging:")
	fmt.Printf("  Level: %s\n", config.Log.Level)
	fmt.Printf("  Format: %s\n", config.Log.Format)
}

func runConfigSet(cmd *cobra.Command, args []string) {
	key := args[0]
	value := args[1]
	configPath := configFilePath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Config file not found: %s\n", configPath)
		fmt.Fprintf(os.Stderr, "Run 'prism config init' to create one\n")
		os.Exit(1)
	}

	for _, secretKey := range ListAvailableSecretKeys() {
		if key == secretKey {
			fmt.Fprintf(os.Stderr, "Error: '%s' is a secret key. Use 'prism config set-key %s' instead.\n", key, key)
			os.Exit(1)
		}
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		os.Exit(1)
	}

	inferredValue := inferType(key, value, v)
	v.Set(key, inferredValue)

	if err := v.WriteConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Set %s = %v\n", key, inferredValue)
}

func runConfigGet(cmd *cobra.Command, args []string) {
	key := args[0]
	configPath := configFilePath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Config file not found: %s\n", configPath)
		fmt.Fprintf(os.Stderr, "Run 'prism config init' to create one\n")
		os.Exit(1)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		os.Exit(1)
	}

	if !v.IsSet(key) {
		fmt.Fprintf(os.Stderr, "Key not found: %s\n", key)
		os.Exit(1)
	}

	fmt.Printf("%s: %v\n", key, v.Get(key))
}

func runConfigSetKey(cmd *cobra.Command, args []string) {
	keyName := args[0]

	availableKeys := ListAvailableSecretKeys()
	valid := false
	for _, k := range availableKeys {
		if k == keyName {
			valid = true
			break
		}
	}
	if !valid {
		fmt.Fprintf(os.Stderr, "Invalid key name: %s\n", keyName)
		fmt.Fprintf(os.Stderr, "Available keys:\n")
		for _, k := range availableKeys {
			fmt.Fprintf(os.Stderr, "  - %s\n", k)
		}
		os.Exit(1)
	}

	fmt.Printf("Enter %s (input hidden): ", keyName)
	secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	secret := string(secretBytes)
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Secret cannot be empty\n")
		os.Exit(1)
	}

	if err := keyring.Set(ServiceName, keyName, secret); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving to keyring: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Saved %s to system keyring\n", keyName)
}

func runConfigGetKey(cmd *cobra.Command, args []string) {
	keyName := args[0]

	secret, err := keyring.Get(ServiceName, keyName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retrieving key: %v\n", err)
		fmt.Fprintf(os.Stderr, "Key not found in keyring. Set it with: prism config set-key %s\n", keyName)
		os.Exit(1)
	}

	fmt.Printf("%s: %s\n", keyName, maskSecret(secret))
}

func runConfigDeleteKey(cmd *cobra.Command, args []string) {
	keyName := args[0]

	if err := keyring.Delete(ServiceName, keyName); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Deleted %s from system keyring\n", keyName)
}

func runConfigListKeys(cmd *cobra.Command, args []string) {
	fmt.Println("Available secret keys:")
	fmt.Println("======================")
	for _, key := range ListAvailableSecretKeys() {
		fmt.Printf("  - %s\n", key)
	}
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  prism config set-key <key-name>")
	fmt.Println("  prism config get-key <key-name>")
	fmt.Println("  prism config delete-key <key-name>")
}

// maskSecret masks a secret for display.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// maskDSN hides the password portion of a connection URL.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	scheme := strings.Index(dsn, "://")
	if scheme < 0 {
		return "***" + dsn[at:]
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		creds = creds[:colon] + ":***"
	}
	return dsn[:scheme+3] + creds + dsn[at:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// inferType coerces a string value based on the key name and any existing
// value, so "prism config set sql.max_rows 500" writes an int not a string.
func inferType(key, value string, v *viper.Viper) interface{} {
	lower := strings.ToLower(key)

	if strings.Contains(lower, "temperature") {
		var floatVal float64
		if _, err := fmt.Sscanf(value, "%f", &floatVal); err == nil {
			return floatVal
		}
	}

	if strings.Contains(lower, "port") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "max_") || strings.Contains(lower, "min_") ||
		strings.Contains(lower, "per_minute") || strings.Contains(lower, "top_k") {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}

	if strings.Contains(lower, "enabled") || strings.Contains(lower, "encrypt") ||
		strings.Contains(lower, "watch") || strings.Contains(lower, "local") ||
		strings.Contains(lower, "accept_tos") || strings.Contains(lower, "auto_renew") {
		if value == "true" {
			return true
		} else if value == "false" {
			return false
		}
	}

	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case bool:
			if value == "true" {
				return true
			} else if value == "false" {
				return false
			}
		case int, int64:
			var intVal int
			if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
				return intVal
			}
		case float64:
			var floatVal float64
			if _, err := fmt.Sscanf(value, "%f", &floatVal); err == nil {
				return floatVal
			}
		}
	}

	return value
}
