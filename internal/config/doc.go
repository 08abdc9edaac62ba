// Package config loads the licdesk console configuration.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/licdesk/config.toml
//  3. If the file doesn't exist, use defaults
//  4. Blank or missing fields use defaults
//
// # TOML Format
//
//	api_url = "http://localhost:9090/NexxLicense"
//	request_timeout = "10s"
//	poll_interval = "30s"
//	page_size = 10
//	allow_empty_modules = false
//	require_serial = false
//	log_file = "~/.local/state/licdesk/licdesk.log"
//	log_level = "info"
//	session_file = "~/.config/licdesk/session.toml"
//
// Durations use time.ParseDuration syntax. Tilde expansion is applied to
// file paths.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than a
// missing file, invalid TOML and invalid durations. A missing file is not an
// error so the console works out of the box against a local backend.
package config
