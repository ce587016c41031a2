// Package config defines fleet-pack settings and helpers to load, validate and
// save them in YAML format.
//
// Every setting has a default, so a missing settings file at the default
// location is not an error.
package config
