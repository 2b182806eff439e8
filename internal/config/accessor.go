package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetByPath reads a value by its camelCase dot path, e.g. "agent.maxIterations"
// or "providers.ollama.apiBase". Values come back in their JSON form.
func GetByPath(cfg *Config, path string) (any, error) {
	keys, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	tree, err := toTree(cfg)
	if err != nil {
		return nil, err
	}

	var node any = tree
	for i, key := range keys {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s is not a section", strings.Join(keys[:i], "."))
		}
		if node, ok = m[key]; !ok {
			return nil, fmt.Errorf("key not found: %s", path)
		}
	}
	return node, nil
}

// SetByPath parses raw as a YAML scalar or flow value and stores it at path.
// Missing sections are created, so a new provider can be added key by key.
// The edited config must decode into Config without unknown keys and pass
// Validate; on any error cfg is left unchanged.
func SetByPath(cfg *Config, path, raw string) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}
	tree, err := toTree(cfg)
	if err != nil {
		return err
	}

	parent := tree
	for _, key := range keys[:len(keys)-1] {
		child, ok := parent[key]
		if !ok || child == nil {
			next := map[string]any{}
			parent[key] = next
			parent = next
			continue
		}
		if parent, ok = child.(map[string]any); !ok {
			return fmt.Errorf("cannot set %s: %s is not a section", path, key)
		}
	}

	leaf := keys[len(keys)-1]
	if _, isString := parent[leaf].(string); isString {
		parent[leaf] = raw
	} else {
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return fmt.Errorf("parse value %q: %w", raw, err)
		}
		parent[leaf] = v
	}

	next, err := decodeTree(tree)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Type.Kind() == reflect.String {
		// Numeric-looking tokens and chat IDs for string fields.
		parent[leaf] = raw
		next, err = decodeTree(tree)
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if err := Validate(next); err != nil {
		return err
	}
	*cfg = *next
	return nil
}

func decodeTree(tree map[string]any) (*Config, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitPath(path string) ([]string, error) {
	keys := strings.Split(strings.TrimSpace(path), ".")
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("invalid config path %q", path)
		}
	}
	return keys, nil
}

// toTree renders cfg as nested maps keyed by the JSON field names.
func toTree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Sanitize returns a copy of the config with secrets masked.
func Sanitize(cfg *Config) *Config {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg // Return original on marshal error
	}
	var copy Config
	if err := json.Unmarshal(data, &copy); err != nil {
		return cfg
	}

	for name, prov := range copy.Providers {
		if prov.APIKey != "" {
			prov.APIKey = maskString(prov.APIKey)
		}
		copy.Providers[name] = prov
	}

	if copy.Notify.Slack.BotToken != "" {
		copy.Notify.Slack.BotToken = maskString(copy.Notify.Slack.BotToken)
	}
	if copy.Notify.Telegram.Token != "" {
		copy.Notify.Telegram.Token = maskString(copy.Notify.Telegram.Token)
	}
	if copy.Notify.Discord.Token != "" {
		copy.Notify.Discord.Token = maskString(copy.Notify.Discord.Token)
	}

	return &copy
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
