// Package config loads the settings of the master and worker processes.
//
// Values are resolved in order of increasing precedence:
//
//	defaults < YAML file < LT_* environment variables < command-line overrides
//
// Command-line overrides are addressed by dot path using the YAML key names,
// for example "worker.master_url" or "logging.level".
package config
