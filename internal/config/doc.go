// Package config loads, validates and persists the YAML deployment settings.
//
// A Config describes a single deployment: the SSH target, the local source tree, the
// remote destination and the commands used to stop and reinstall the service.
package config
