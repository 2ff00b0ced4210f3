package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	if errs := c.validate(); len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validate() []string {
	var errs []string

	// channels.discord
	dc := c.Channels.Discord
	if dc.Enabled && dc.Token == "" {
		errs = append(errs, "channels.discord.token is required when discord is enabled")
	}

	// provider
	p := c.Provider
	if p.InitialDelaySeconds < 0 {
		errs = append(errs, "provider.initialDelaySeconds must be non-negative")
	}
	if p.PollIntervalSeconds < 0 {
		errs = append(errs, "provider.pollIntervalSeconds must be non-negative")
	}
	if p.MaxWaitMinutes < 0 {
		errs = append(errs, "provider.maxWaitMinutes must be non-negative")
	}
	if p.RequestsPerSecond < 0 {
		errs = append(errs, "provider.requestsPerSecond must be non-negative")
	}
	if p.Burst < 0 {
		errs = append(errs, "provider.burst must be non-negative")
	}

	// limits
	if c.Limits.Capacity < 0 {
		errs = append(errs, "limits.capacity must be non-negative")
	}
	if c.Limits.RefillSeconds < 0 {
		errs = append(errs, "limits.refillSeconds must be non-negative")
	}
	if c.Limits.MaxPromptLength < 0 {
		errs = append(errs, "limits.maxPromptLength must be non-negative")
	}

	// dispatcher, sessions
	if c.Dispatcher.Workers < 0 {
		errs = append(errs, "dispatcher.workers must be non-negative")
	}
	if c.Dispatcher.QueueSize < 0 {
		errs = append(errs, "dispatcher.queueSize must be non-negative")
	}
	if c.Sessions.IdleTTLMinutes < 0 {
		errs = append(errs, "sessions.idleTtlMinutes must be non-negative")
	}

	// packages
	seen := make(map[string]bool, len(c.Packages))
	for i, pkg := range c.Packages {
		switch {
		case !strings.HasPrefix(pkg.ID, "package_"):
			errs = append(errs, fmt.Sprintf("packages[%d].id must start with \"package_\"", i))
		case seen[pkg.ID]:
			errs = append(errs, fmt.Sprintf("packages[%d].id %q is duplicated", i, pkg.ID))
		}
		seen[pkg.ID] = true
		if pkg.Credits <= 0 {
			errs = append(errs, fmt.Sprintf("packages[%d].credits must be positive", i))
		}
		if pkg.Label == "" && !pkg.Hidden {
			errs = append(errs, fmt.Sprintf("packages[%d].label is required", i))
		}
	}

	// store
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for the "+c.Store.Driver+" driver")
		}
	case "dynamodb":
		if c.Store.Table == "" {
			errs = append(errs, "store.table is required for the dynamodb driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be one of memory, sqlite, postgres, dynamodb", c.Store.Driver))
	}

	// log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}

	return errs
}

// CheckUnknownFields walks the raw config map and returns paths of any keys
// that do not correspond to known Config struct fields.
func CheckUnknownFields(raw map[string]any) []string {
	result := checkUnknownFields(raw, reflect.TypeOf(Config{}), "")
	sort.Strings(result)
	return result
}

func checkUnknownFields(data map[string]any, t reflect.Type, prefix string) []string {
	t = derefType(t)

	switch t.Kind() {
	case reflect.Map:
		// Map keys are user-defined; check values only.
		elemType := derefType(t.Elem())
		if elemType.Kind() != reflect.Struct {
			return nil
		}
		var unknown []string
		for key, val := range data {
			if nested, ok := val.(map[string]any); ok {
				unknown = append(unknown, checkUnknownFields(nested, elemType, joinPath(prefix, key))...)
			}
		}
		return unknown

	case reflect.Struct:
		known := jsonFieldMap(t)
		var unknown []string
		for key, val := range data {
			ft, ok := known[key]
			if !ok {
				unknown = append(unknown, joinPath(prefix, key))
				continue
			}
			switch v := val.(type) {
			case map[string]any:
				unknown = append(unknown, checkUnknownFields(v, ft, joinPath(prefix, key))...)
			case []any:
				unknown = append(unknown, checkUnknownItems(v, ft, joinPath(prefix, key))...)
			}
		}
		return unknown

	default:
		return nil
	}
}

// checkUnknownItems checks each object in a JSON array against a slice's element type.
func checkUnknownItems(items []any, t reflect.Type, prefix string) []string {
	t = derefType(t)
	if t.Kind() != reflect.Slice {
		return nil
	}
	var unknown []string
	for i, item := range items {
		if nested, ok := item.(map[string]any); ok {
			unknown = append(unknown, checkUnknownFields(nested, t.Elem(), fmt.Sprintf("%s[%d]", prefix, i))...)
		}
	}
	return unknown
}

func jsonFieldMap(t reflect.Type) map[string]reflect.Type {
	m := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			m[name] = f.Type
		}
	}
	return m
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
