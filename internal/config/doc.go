// Package config provides configuration structures and utilities for the
// crawler. It defines crawl limits, politeness settings, output locations and
// report preferences, plus loading of the optional YAML configuration file.
package config
