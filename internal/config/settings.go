package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Environment variables read by LoadSettings.
const (
	EnvConfig        = "SETUPER_CONFIG"
	EnvEvents        = "SETUPER_EVENTS"
	EnvJournal       = "SETUPER_JOURNAL"
	EnvDir           = "SETUPER_DIR"
	EnvLogLevel      = "SETUPER_LOG_LEVEL"
	EnvLogFormat     = "SETUPER_LOG_FORMAT"
	EnvNoInteraction = "SETUPER_NO_INTERACTION"
)

// Settings are the environment defaults for command flags. Flags given on
// the command line win over every field.
type Settings struct {
	Config        string
	Events        []string
	Journal       string
	Dir           string
	LogLevel      string
	LogFormat     string
	NoInteraction bool
}

// LoadSettings reads settings from the process environment, falling back
// to the KEY=value lines of dotenv when it exists. The process environment
// is not modified.
func LoadSettings(dotenv string) Settings {
	file := readDotEnv(dotenv)
	return SettingsFrom(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	})
}

// SettingsFrom builds settings from a lookup function.
func SettingsFrom(lookup func(string) (string, bool)) Settings {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	s := Settings{
		Config:    get(EnvConfig, ""),
		Journal:   get(EnvJournal, ""),
		Dir:       get(EnvDir, ""),
		LogLevel:  get(EnvLogLevel, "warn"),
		LogFormat: get(EnvLogFormat, "text"),
	}
	for _, e := range strings.Split(get(EnvEvents, ""), ",") {
		if e = strings.TrimSpace(e); e != "" {
			s.Events = append(s.Events, e)
		}
	}
	if v := get(EnvNoInteraction, ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.NoInteraction = b
		}
	}
	return s
}

func readDotEnv(path string) map[string]string {
	values := map[string]string{}
	if path == "" {
		return values
	}
	file, err := os.Open(path)
	if err != nil {
		return values
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return values
}
