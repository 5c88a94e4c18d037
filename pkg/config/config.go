package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/objperms"
	ConfigFileName    = "objperms.yml"
)

// PanelConfig holds all panel server configuration settings
type PanelConfig struct {
	// ListenAddr is the address the HTTP server binds to
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// BasePath is the URL prefix the panel is mounted under
	BasePath string `yaml:"base_path" json:"base_path"`

	// RegistryPath is the permission definitions file
	RegistryPath string `yaml:"registry_path" json:"registry_path"`

	// SessionSecret signs panel session tokens
	SessionSecret string `yaml:"session_secret" json:"session_secret"`

	// SessionTTL is the session token lifetime in seconds
	SessionTTL int `yaml:"session_ttl" json:"session_ttl"`

	// TrustedProxies is a list of CIDR ranges for trusted proxies
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`

	// RowListLimit is the maximum number of subject rows rendered per panel
	RowListLimit int `yaml:"row_list_limit" json:"row_list_limit"`

	// LiveUpdatesEnabled serves the websocket event stream
	LiveUpdatesEnabled bool `yaml:"live_updates_enabled" json:"live_updates_enabled"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *PanelConfig
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *PanelConfig {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	// Load config
	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			// Return defaults on error
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// newDefault returns a config with default values
func newDefault() *PanelConfig {
	return &PanelConfig{
		ListenAddr:         ":8080",
		BasePath:           "/panel",
		RegistryPath:       filepath.Join(DefaultConfigPath, "registry.yml"),
		SessionTTL:         3600,
		TrustedProxies:     []string{},
		RowListLimit:       1000,
		LiveUpdatesEnabled: true,
		sources:            make(map[string]string),
	}
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over file values
func Load() (*PanelConfig, error) {
	config := newDefault()

	// Initialize all sources as "default"
	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	// Determine config file path
	configPath := os.Getenv("OBJPERMS_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	// Try to load from config file
	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig PanelConfig
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig)
	}

	// Override with environment variables
	config.applyEnvConfig()

	return config, nil
}

func attributeNames() []string {
	return []string{
		"listen_addr", "base_path", "registry_path", "session_secret",
		"session_ttl", "trusted_proxies", "row_list_limit",
		"live_updates_enabled",
	}
}

func (c *PanelConfig) applyFileConfig(file *PanelConfig) {
	if file.ListenAddr != "" {
		c.ListenAddr = file.ListenAddr
		c.sources["listen_addr"] = "file"
	}
	if file.BasePath != "" {
		c.BasePath = file.BasePath
		c.sources["base_path"] = "file"
	}
	if file.RegistryPath != "" {
		c.RegistryPath = file.RegistryPath
		c.sources["registry_path"] = "file"
	}
	if file.SessionSecret != "" {
		c.SessionSecret = file.SessionSecret
		c.sources["session_secret"] = "file"
	}
	if file.SessionTTL != 0 {
		c.SessionTTL = file.SessionTTL
		c.sources["session_ttl"] = "file"
	}
	if len(file.TrustedProxies) > 0 {
		c.TrustedProxies = file.TrustedProxies
		c.sources["trusted_proxies"] = "file"
	}
	if file.RowListLimit != 0 {
		c.RowListLimit = file.RowListLimit
		c.sources["row_list_limit"] = "file"
	}
}

func (c *PanelConfig) applyEnvConfig() {
	if val := os.Getenv("OBJPERMS_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
		c.sources["listen_addr"] = "environment"
	}
	if val := os.Getenv("OBJPERMS_BASE_PATH"); val != "" {
		c.BasePath = val
		c.sources["base_path"] = "environment"
	}
	if val := os.Getenv("OBJPERMS_REGISTRY_PATH"); val != "" {
		c.RegistryPath = val
		c.sources["registry_path"] = "environment"
	}
	if val := os.Getenv("OBJPERMS_SESSION_SECRET"); val != "" {
		c.SessionSecret = val
		c.sources["session_secret"] = "environment"
	}
	if val := os.Getenv("OBJPERMS_SESSION_TTL"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.SessionTTL = i
			c.sources["session_ttl"] = "environment"
		}
	}
	if val := os.Getenv("OBJPERMS_TRUSTED_PROXIES"); val != "" {
		c.TrustedProxies = splitAndTrim(val)
		c.sources["trusted_proxies"] = "environment"
	}
	if val := os.Getenv("OBJPERMS_ROW_LIST_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.RowListLimit = i
			c.sources["row_list_limit"] = "environment"
		}
	}
	if val := os.Getenv("OBJPERMS_LIVE_UPDATES_ENABLED"); val != "" {
		c.LiveUpdatesEnabled = val == "true" || val == "1"
		c.sources["live_updates_enabled"] = "environment"
	}
}

// ConfigFilePath returns the path to the config file
func (c *PanelConfig) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *PanelConfig) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// SessionLifetime returns the session TTL as a duration
func (c *PanelConfig) SessionLifetime() time.Duration {
	return time.Duration(c.SessionTTL) * time.Second
}

// IsTrustedProxy checks if an IP is from a trusted proxy
func (c *PanelConfig) IsTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Try as plain IP
			if net.ParseIP(cidr) != nil && cidr == ip {
				return true
			}
			continue
		}
		if network.Contains(parsedIP) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *PanelConfig) Validate() error {
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("base_path must start with /: %s", c.BasePath)
	}
	if strings.HasSuffix(c.BasePath, "/") && c.BasePath != "/" {
		return fmt.Errorf("base_path must not end with /: %s", c.BasePath)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive: %d", c.SessionTTL)
	}
	if c.RowListLimit <= 0 {
		return fmt.Errorf("row_list_limit must be positive: %d", c.RowListLimit)
	}

	// Validate trusted proxies are valid CIDR ranges
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			if net.ParseIP(cidr) == nil {
				return fmt.Errorf("invalid trusted_proxies value: %s", cidr)
			}
		}
	}

	return nil
}

// Attributes returns all configuration attributes with their values and sources
// The session secret is never included in the clear.
func (c *PanelConfig) Attributes() []Attribute {
	secret := ""
	if c.SessionSecret != "" {
		secret = "(redacted)"
	}
	return []Attribute{
		{Name: "listen_addr", Value: c.ListenAddr, Source: c.Source("listen_addr")},
		{Name: "base_path", Value: c.BasePath, Source: c.Source("base_path")},
		{Name: "registry_path", Value: c.RegistryPath, Source: c.Source("registry_path")},
		{Name: "session_secret", Value: secret, Source: c.Source("session_secret")},
		{Name: "session_ttl", Value: strconv.Itoa(c.SessionTTL), Source: c.Source("session_ttl")},
		{Name: "trusted_proxies", Value: strings.Join(c.TrustedProxies, ","), Source: c.Source("trusted_proxies")},
		{Name: "row_list_limit", Value: strconv.Itoa(c.RowListLimit), Source: c.Source("row_list_limit")},
		{Name: "live_updates_enabled", Value: strconv.FormatBool(c.LiveUpdatesEnabled), Source: c.Source("live_updates_enabled")},
	}
}

// FormatText returns a text representation of the configuration
func (c *PanelConfig) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-25s %-40s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-25s %-40s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-25s %-40s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *PanelConfig) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
