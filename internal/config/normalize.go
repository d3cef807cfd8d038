package config

import "strings"

// normalizeConfig normalizes configuration values.
func normalizeConfig(c *Config) {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)

	// A trailing slash would produce "//websites" when paths are joined.
	c.Dashboard.APIBase = strings.TrimRight(c.Dashboard.APIBase, "/")
}
