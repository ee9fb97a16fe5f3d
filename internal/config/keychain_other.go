//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, keychainService, "secrets.json")
}

// secretsFile stands in for a keychain where none exists. It holds the
// matcher API key and Postgres DSN as {"service": {"account": "value"}}.
type secretsFile struct {
	path    string
	entries map[string]map[string]string
}

func openSecretsFile(path string) (*secretsFile, error) {
	f := &secretsFile{path: path, entries: make(map[string]map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	if err := json.Unmarshal(data, &f.entries); err != nil {
		return nil, fmt.Errorf("parsing secrets file %s: %w", path, err)
	}
	return f, nil
}

func (f *secretsFile) get(service, account string) (string, bool) {
	v, ok := f.entries[service][account]
	return v, ok
}

func (f *secretsFile) set(service, account, value string) {
	if f.entries[service] == nil {
		f.entries[service] = make(map[string]string)
	}
	f.entries[service][account] = value
}

func (f *secretsFile) remove(service, account string) bool {
	if _, ok := f.entries[service][account]; !ok {
		return false
	}
	delete(f.entries[service], account)
	if len(f.entries[service]) == 0 {
		delete(f.entries, service)
	}
	return true
}

func (f *secretsFile) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, out, 0o600)
}

func keychainGet(service, account string) ([]byte, error) {
	f, err := openSecretsFile(secretsFilePath())
	if err != nil {
		return nil, err
	}
	v, ok := f.get(service, account)
	if !ok {
		return nil, fmt.Errorf("no %s secret stored for %s", account, service)
	}
	return []byte(v), nil
}

func keychainSet(service, account, value string) error {
	f, err := openSecretsFile(secretsFilePath())
	if err != nil {
		return err
	}
	f.set(service, account, value)
	return f.save()
}

// keychainDelete removes a stored secret. Removing a missing one is not an error.
func keychainDelete(service, account string) error {
	f, err := openSecretsFile(secretsFilePath())
	if err != nil {
		return err
	}
	if !f.remove(service, account) {
		return nil
	}
	return f.save()
}
