package main

import (
	"errors"
	"strings"
)

func Setup() []map[string]any {
	return []map[string]any{
		{
			"key":      "name",
			"action":   "insert",
			"message":  "Project name?",
			"variable": "name",
			"default":  "@setup::dirname",
			"priority": 10,
		},
		{
			"key":      "readme",
			"producer": "readme",
		},
		{
			"key":     "greet",
			"action":  "write",
			"message": "Created {$name}",
			"event":   "post-setup",
		},
	}
}

func Producers() map[string]func(string, []any, map[string]any) map[string]any {
	return map[string]func(string, []any, map[string]any) map[string]any{
		"readme": func(key string, entries []any, vars map[string]any) map[string]any {
			return map[string]any{
				"action":  "dump",
				"file":    "README.md",
				"content": "# {$name}",
			}
		},
	}
}

func Callables() map[string]func(string, map[string]any, map[string]any) any {
	return map[string]func(string, map[string]any, map[string]any) any{
		"Slug": func(key string, args map[string]any, vars map[string]any) any {
			name, _ := vars["name"].(string)
			return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		},
	}
}

func Validators() map[string]func(any) (any, error) {
	return map[string]func(any) (any, error){
		"NoSpaces": func(v any) (any, error) {
			s, _ := v.(string)
			if strings.Contains(s, " ") {
				return nil, errors.New("spaces are not allowed")
			}
			return v, nil
		},
	}
}
