package config

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/warden/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames are the project config file names, in lookup order.
var configNames = []string{
	"warden.yml",
	"warden.yaml",
	".warden.yml",
	".warden.yaml",
	"warden.toml",
	".warden.toml",
}

var overrideNames = []string{
	"warden.override.yml",
	"warden.override.yaml",
	".warden.override.yml",
	".warden.override.yaml",
}

// Load reads and parses a single warden configuration file
func Load(path string) (*Config, error) {
	raw, err := readLayer(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	cfg.Sources = []string{path}
	return cfg, nil
}

// LoadDefault finds and loads the configuration starting from the working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory
func LoadFrom(startDir string) (*Config, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return LoadFromWithLogger(startDir, logger)
}

// LoadFromWithLogger loads configuration with hierarchical merging:
// 1. Global config (~/.config/warden/warden.yml) - base layer
// 2. Project config (warden.yml found walking up from startDir) - overrides global
// 3. Local override (warden.override.yml next to the project config) - overrides all
//
// Every layer is optional; with none present the defaults apply.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	merged := make(map[string]interface{})
	var sources []string

	// 1. Global config is best effort
	if globalPath := getXDGConfigPath(); globalPath != "" {
		if _, err := os.Stat(globalPath); err == nil {
			logger.WithField("path", globalPath).Debug("Loading global configuration")
			raw, err := readLayer(globalPath)
			if err != nil {
				logger.WithError(err).Warn("Failed to load global configuration, continuing without it")
			} else {
				merged = mergeMaps(merged, raw)
				sources = append(sources, globalPath)
			}
		}
	}

	// 2. Project config errors are fatal: the user asked for it by creating it
	projectPath, err := FindConfigFile(startDir)
	if err != nil && !errors.Is(err, errors.ErrCodeConfigNotFound) {
		return nil, err
	}
	if projectPath != "" {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		raw, err := readLayer(projectPath)
		if err != nil {
			return nil, err
		}
		merged = mergeMaps(merged, raw)
		sources = append(sources, projectPath)

		// 3. Overrides live next to the project config
		projectDir := filepath.Dir(projectPath)
		for _, name := range overrideNames {
			overridePath := filepath.Join(projectDir, name)
			if _, err := os.Stat(overridePath); err != nil {
				continue
			}
			logger.WithField("path", overridePath).Debug("Loading local override configuration")
			raw, err := readLayer(overridePath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse override file, skipping")
				continue
			}
			merged = mergeMaps(merged, raw)
			sources = append(sources, overridePath)
		}
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if configData, err := yaml.Marshal(cfg); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(configData))
		}
	}

	return cfg, nil
}

// LoadFromBytes parses YAML configuration from a byte array
func LoadFromBytes(data []byte) (*Config, error) {
	raw, err := parseYAML(data)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// FindConfigFile searches for a warden configuration file from startDir up to
// the filesystem root.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// readLayer reads one config file into a raw map, by extension.
func readLayer(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	var raw map[string]interface{}
	if strings.HasSuffix(path, ".toml") {
		raw, err = parseTOML(data)
	} else {
		raw, err = parseYAML(data)
	}
	if err != nil {
		if werr, ok := err.(*errors.WardenError); ok {
			return nil, werr.WithDetail("path", path)
		}
		return nil, err
	}
	return raw, nil
}

func parseYAML(data []byte) (map[string]interface{}, error) {
	expanded := expandEnvVars(string(data))

	raw := make(map[string]interface{})
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}
	if raw == nil {
		raw = make(map[string]interface{})
	}
	return raw, nil
}

func parseTOML(data []byte) (map[string]interface{}, error) {
	expanded := expandEnvVars(string(data))

	raw := make(map[string]interface{})
	decoder := toml.NewDecoder(bytes.NewReader([]byte(expanded)))
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
	}
	return raw, nil
}

// decode turns a merged raw map into a defaulted, validated Config. The map
// goes back through YAML so both file formats share one set of field tags.
func decode(raw map[string]interface{}) (*Config, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to re-encode configuration")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// getXDGConfigPath returns the global config path for warden
func getXDGConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "warden", "warden.yml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "warden", "warden.yml")
	}

	return ""
}
