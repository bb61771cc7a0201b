// Package config handles application configuration loading and parsing.
//
// Configuration is sourced from environment variables, optionally seeded
// from a .env file, and unmarshalled into partial config structs owned by
// the packages they configure (server, storage, logger, transform) plus
// the export-pass settings declared here.
//
// Defaults come from 'default' struct tags, resolved recursively through
// the nested structs, so every key exists for AutomaticEnv before the
// environment is consulted. Nested keys map to underscored variables,
// e.g. export.map_path -> EXPORT_MAP_PATH.
package config
