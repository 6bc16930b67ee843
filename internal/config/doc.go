// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Both binaries read the same schema; the recorder additionally requires the
// database section when the writer is enabled.
package config
