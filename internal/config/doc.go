// Package config defines the service configuration loaded from YAML, its
// validation, and the live parameter store the control API writes and the
// engine reads once per chunk.
package config
