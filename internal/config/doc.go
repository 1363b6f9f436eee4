// Package config loads the license panel configuration.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables that are explicitly set (highest priority)
//  2. A YAML file named by PANEL_CONFIG_FILE, or ./config.yaml
//  3. Default values from the struct tags (lowest priority)
//
// A .env file in the working directory is read into the environment before
// anything else.
//
// # Environment Variables
//
// Variables follow the pattern PANEL_<SECTION>_<FIELD>:
//
//	PANEL_SERVER_PORT=3000
//	PANEL_STORAGE_DATA_DIR=/var/lib/panel
//	PANEL_ADMIN_PASSWORD_HASH=$2a$10$...
//	PANEL_DISCORD_TOKEN=...
//	PANEL_BUILTBYBIT_SECRET=...
//	PANEL_GEO_BREAKER_CONSECUTIVE_FAILURES=5
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tests build a configuration with Default and adjust fields directly.
package config
