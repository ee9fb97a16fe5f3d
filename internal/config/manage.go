package config

import (
	"fmt"
	"strconv"
	"time"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secrets are listed as set or unset, never by value.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		v := s.extract(cfg)
		if s.secret {
			if v.(string) == "" {
				v = "(unset)"
			} else {
				v = "(set)"
			}
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", v),
		})
	}
	return result
}

// SetKey writes a config key to the platform backend.
func SetKey(key, value string) error {
	return setKey(newPlatformBackend(), key, value)
}

func setKey(b Backend, key, value string) error {
	s, ok := lookup(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s or set-secret", key, s.env)
	}
	v, err := parseValue(s.typ, value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	switch s.typ {
	case kInt:
		return b.SetInt(key, v.(int))
	case kDuration:
		return b.SetString(key, v.(time.Duration).String())
	case kBool:
		return b.SetString(key, strconv.FormatBool(v.(bool)))
	}
	return b.SetString(key, value)
}

// SetSecret stores a secret key in the platform secret store.
func SetSecret(key, value string) error {
	s, ok := lookup(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if !s.secret {
		return fmt.Errorf("%q is not a secret; use set", key)
	}
	return keychainSet(keychainService, s.account, value)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// SecretKeys returns the config keys that live in the secret store.
func SecretKeys() []string {
	var keys []string
	for _, s := range specs {
		if s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

func lookup(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// UnsetKey removes a key so its default applies again. Secrets are removed
// from the platform secret store; other keys from the backend.
func UnsetKey(key string) error {
	return unsetKey(newPlatformBackend(), keychainDelete, key)
}

func unsetKey(b Backend, deleteSecret func(service, account string) error, key string) error {
	s, ok := lookup(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return deleteSecret(keychainService, s.account)
	}
	return b.Delete(key)
}

// SecretHint tells the user where a secret such as matcher.api_key can be
// supplied: its environment variable, `config set-secret`, or the platform
// secret store.
func SecretHint(key string) string {
	s, ok := lookup(key)
	if !ok || !s.secret {
		return ""
	}
	hint := "environment variable " + s.env
	if s.alt != "" {
		hint += " (or " + s.alt + ")"
	}
	return hint + ", `creatorswipe config set-secret " + s.key + "`, or " + secretStoreHint(s.account)
}
