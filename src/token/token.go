package token

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNoToken is returned when every resolution source comes up empty.
var ErrNoToken = errors.New("GitHub token not found: set GITHUB_TOKEN or log in with the gh CLI")

type hostEntry struct {
	OAuthToken string `yaml:"oauth_token"`
}

// Resolve returns the GitHub API token. Resolution order: the explicit
// value (from --token), GITHUB_TOKEN, GH_TOKEN, then the gh CLI hosts file.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if t := os.Getenv("GITHUB_TOKEN"); t != "" {
		return t, nil
	}
	if t := os.Getenv("GH_TOKEN"); t != "" {
		return t, nil
	}

	if t := fromHostsFile(); t != "" {
		return t, nil
	}

	return "", ErrNoToken
}

// fromHostsFile reads the token the gh CLI stores for github.com.
func fromHostsFile() string {
	dir := os.Getenv("GH_CONFIG_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config", "gh")
	}

	data, err := os.ReadFile(filepath.Join(dir, "hosts.yml"))
	if err != nil {
		return ""
	}

	hosts := map[string]hostEntry{}
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		fmt.Fprintf(os.Stderr, "warning: error parsing gh hosts file: %v\n", err)
		return ""
	}

	return hosts["github.com"].OAuthToken
}
