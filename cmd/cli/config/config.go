package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAPIURL = "http://localhost:8080"
	tokenFileName = ".trakset_token"
)

// ErrNotLoggedIn is returned when no token has been saved.
var ErrNotLoggedIn = errors.New("not logged in; run `trakset login` first")

// APIURL returns the base URL for the trakset API.
// It can be overridden with the TRAKSET_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("TRAKSET_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// ==========================
// Token Storage
// ==========================

func SaveToken(token string) error {
	return os.WriteFile(tokenPath(), []byte(token), 0600)
}

func LoadToken() (string, error) {
	data, err := os.ReadFile(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ClearToken removes the saved token. It reports whether one existed.
func ClearToken() (bool, error) {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func tokenPath() string {
	if v := os.Getenv("TRAKSET_TOKEN_FILE"); v != "" {
		return v
	}
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, tokenFileName)
}
