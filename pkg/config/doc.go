// Package config defines the YAML configuration for themis hosts:
// fact file locations, session lifecycle limits, the session store
// backend and telemetry settings.
//
// Configuration loads in three stages: YAML file, defaults for omitted
// fields, then THEMIS_* environment variable overrides. Validation runs
// after every stage that can change values.
package config
