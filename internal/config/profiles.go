package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Profiles holds all named backend profiles and tracks which one is active.
type Profiles struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is a named backend connection.
type Profile struct {
	APIURL      string `toml:"api_url"`
	Token       string `toml:"token,omitempty"`
	NATSURL     string `toml:"nats_url,omitempty"`
	DatabaseURL string `toml:"database_url,omitempty"`
}

// ProfilesPath returns the location of profiles.toml, creating its directory.
func ProfilesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "roundtable")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.toml"), nil
}

// LoadProfiles reads profiles.toml. A missing file yields an empty set.
func LoadProfiles() (Profiles, error) {
	path, err := ProfilesPath()
	if err != nil {
		return Profiles{}, err
	}
	var p Profiles
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if os.IsNotExist(err) {
			return Profiles{Profiles: map[string]Profile{}}, nil
		}
		return Profiles{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if p.Profiles == nil {
		p.Profiles = map[string]Profile{}
	}
	return p, nil
}

// SaveProfiles writes profiles.toml with owner-only permissions.
func SaveProfiles(p Profiles) error {
	path, err := ProfilesPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(p)
}

// Names returns the profile names in sorted order.
func (p Profiles) Names() []string {
	names := make([]string, 0, len(p.Profiles))
	for name := range p.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Use marks name as the active profile.
func (p *Profiles) Use(name string) error {
	if _, ok := p.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	p.Active = name
	return nil
}

// Remove deletes name, clearing the active marker if it pointed there.
func (p *Profiles) Remove(name string) error {
	if _, ok := p.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(p.Profiles, name)
	if p.Active == name {
		p.Active = ""
	}
	return nil
}
