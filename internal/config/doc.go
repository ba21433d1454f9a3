// Package config loads engine configuration from environment variables.
package config
