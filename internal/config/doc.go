// Package config provides configuration structures and utilities for rufus.
// It defines the crawl parameters, the relevance oracle selection, the
// per-site overrides read from .rufus.yaml and the report preferences.
package config
