package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"nexboard/internal/domain"
)

// Config models nexboard.yml.
type Config struct {
	Server struct {
		Addr          string `yaml:"addr"`
		BasePath      string `yaml:"base_path"`
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"server"`
	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`
	Roles map[string]RolePolicy `yaml:"roles"`
}

type RolePolicy struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// Permissions referenced by the role policies. Reads are open to any
// authenticated session; writes are gated per role.
const (
	PermUsersWrite    = "users.write"
	PermProjectsWrite = "projects.write"
	PermTasksWrite    = "tasks.write"
	PermTasksUpdate   = "tasks.update"
)

func knownPermission(p string) bool {
	switch p {
	case PermUsersWrite, PermProjectsWrite, PermTasksWrite, PermTasksUpdate:
		return true
	}
	return false
}

// Allows reports whether the role policy grants the permission.
func (c *Config) Allows(role domain.Role, permission string) bool {
	policy, ok := c.Roles[string(role)]
	if !ok {
		return false
	}
	for _, p := range policy.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// TokenTTLHoursOrDefault guards against a zero TTL from a sparse config.
func (c *Config) TokenTTLHoursOrDefault() int {
	if c.Server.TokenTTLHours <= 0 {
		return 24
	}
	return c.Server.TokenTTLHours
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with nxb init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("config.server.jwt_secret is required")
	}
	if c.Server.TokenTTLHours < 0 {
		return fmt.Errorf("config.server.token_ttl_hours must not be negative")
	}
	if len(c.Roles) == 0 {
		return fmt.Errorf("config.roles is required")
	}
	for roleID, policy := range c.Roles {
		if !domain.Role(roleID).Valid() {
			return fmt.Errorf("config.roles contains unknown role %s", roleID)
		}
		for _, perm := range policy.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", roleID)
			}
			if !knownPermission(perm) {
				return fmt.Errorf("role %s references unknown permission %s", roleID, perm)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "nexboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: ":8787"
  base_path: /v0
  jwt_secret: change-me
  token_ttl_hours: 24

api:
  base_url: http://127.0.0.1:8787

roles:
  MANAGEMENT:
    description: "Full administrative access"
    permissions: [users.write, projects.write, tasks.write, tasks.update]

  TEAM_LEAD:
    description: "Manages projects and their tasks"
    permissions: [projects.write, tasks.write, tasks.update]

  DEVELOPER:
    description: "Works tasks on the board"
    permissions: [tasks.update]
`
