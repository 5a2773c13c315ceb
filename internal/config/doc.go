// Package config provides configuration management for air-download.
//
// This package handles:
//   - Loading settings from an optional YAML file
//   - Default configuration values
//   - Resolving AIR credentials from a file or the environment
//
// # Settings
//
// Use DefaultSettings() for sensible defaults, or Load() to merge a
// YAML settings file over them:
//
//	settings, err := config.Load("~/.air-download.yaml")
//	settings.BaseURL = flagURL // flags override the file
//
// # Credentials
//
// Credentials resolve from an explicit file path first, then the
// AIR_USERNAME / AIR_PASSWORD environment variables:
//
//	creds, err := config.ResolveCredentials(settings.CredPath, warnf)
//
// The credentials file uses KEY=VALUE lines:
//
//	AIR_USERNAME=researcher
//	AIR_PASSWORD=hunter2
//
// Files with permissions other than 0600 are tightened in place, since
// they hold a login secret.
package config
