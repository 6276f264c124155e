// Package config loads, normalizes, and validates archiver configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the two
// required inputs: the staging directory and the destination list file.
// Command line flags reach the loader as Options so they win over the file.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, lowercased naming markers, and clear validation errors.
package config
