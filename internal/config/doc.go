// Package config loads, normalizes, and validates vr180 configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VR180_API_BIND. The Config type centralizes every knob the daemon and CLI
// need, so the working directory, external tool binaries, and pipeline
// timings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
