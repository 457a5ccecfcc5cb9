package config

import (
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/imdario/mergo"
	yaml "github.com/jesseduffield/yaml"
)

// AppConfig contains the base configuration fields required for hgpipe.
type AppConfig struct {
	Debug       bool   `long:"debug" env:"DEBUG" default:"false"`
	Version     string `long:"version" env:"VERSION" default:"unversioned"`
	Commit      string `long:"commit" env:"COMMIT"`
	BuildDate   string `long:"build-date" env:"BUILD_DATE"`
	Name        string `long:"name" env:"NAME" default:"hgpipe"`
	BuildSource string `long:"build-source" env:"BUILD_SOURCE" default:""`
	UserConfig  *UserConfig
	ConfigDir   string
}

// UserConfig holds all of the user-configurable options. The fields here are
// all in PascalCase but in your actual config.yml they'll be in camelCase.
// You can view the effective config with `hgpipe --dump-config`.
type UserConfig struct {
	// Server configures how the command server child is launched
	Server ServerConfig `yaml:"server,omitempty"`

	// Smoke configures the --smoke self-check
	Smoke SmokeConfig `yaml:"smoke,omitempty"`
}

// ServerConfig configures how the command server child is launched
type ServerConfig struct {
	// HgBinary is the hg executable to launch; it's looked up on PATH when
	// not an absolute path
	HgBinary string `yaml:"hgBinary,omitempty"`

	// Encoding is exported to the child as HGENCODING when set
	Encoding string `yaml:"encoding,omitempty"`

	// ConfigOverrides are k=v pairs handed to the child as --config flags
	ConfigOverrides []string `yaml:"configOverrides,omitempty"`

	// GraceTimeoutSeconds bounds how long closing a session waits for the
	// child to exit before force-killing it
	GraceTimeoutSeconds int `yaml:"graceTimeoutSeconds,omitempty"`
}

// SmokeConfig configures the --smoke self-check
type SmokeConfig struct {
	// KeepWorkDir leaves the temporary repository behind for inspection
	// instead of deleting it when the run finishes
	KeepWorkDir bool `yaml:"keepWorkDir,omitempty"`

	// CommitUser is the username recorded by the smoke test's commits
	CommitUser string `yaml:"commitUser,omitempty"`
}

// GetDefaultConfig returns the application default configuration
// NOTE (to contributors, not users): do not default a boolean to true, because false is the boolean zero value and this will be ignored when parsing the user's config
func GetDefaultConfig() UserConfig {
	return UserConfig{
		Server: ServerConfig{
			HgBinary:            "hg",
			GraceTimeoutSeconds: 2,
		},
		Smoke: SmokeConfig{
			CommitUser: "hgpipe smoke <smoke@hgpipe.invalid>",
		},
	}
}

// NewAppConfig makes a new app config
func NewAppConfig(name, version, commit, date string, buildSource string, debuggingFlag bool) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	userConfig, err := loadUserConfigWithDefaults(configDir)
	if err != nil {
		return nil, err
	}

	appConfig := &AppConfig{
		Name:        name,
		Version:     version,
		Commit:      commit,
		BuildDate:   date,
		Debug:       debuggingFlag || os.Getenv("DEBUG") == "TRUE",
		BuildSource: buildSource,
		UserConfig:  userConfig,
		ConfigDir:   configDir,
	}

	return appConfig, nil
}

func findOrCreateConfigDir(projectName string) (string, error) {
	configDir := xdg.New("hgpipe", projectName).ConfigHome()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", err
	}

	return configDir, nil
}

func loadUserConfigWithDefaults(configDir string) (*UserConfig, error) {
	config := GetDefaultConfig()

	userConfig, err := loadUserConfig(configDir, &config)
	if err != nil {
		return nil, err
	}

	// a user config that names a section but leaves keys out must not scrap
	// the defaults for those keys
	defaults := GetDefaultConfig()
	if err := mergo.Merge(userConfig, defaults); err != nil {
		return nil, err
	}

	return userConfig, nil
}

func loadUserConfig(configDir string, base *UserConfig) (*UserConfig, error) {
	fileName := filepath.Join(configDir, "config.yml")

	if _, err := os.Stat(fileName); err != nil {
		if os.IsNotExist(err) {
			file, err := os.Create(fileName)
			if err != nil {
				return nil, err
			}
			file.Close()
		} else {
			return nil, err
		}
	}

	content, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(content, base); err != nil {
		return nil, err
	}

	return base, nil
}

// WriteToUserConfig allows you to set a value on the user config to be saved
// note that if you set a zero-value, it may be ignored e.g. a false or 0 or empty string
// this is because we are using the omitempty yaml directive so that we don't write a heap
// of zero values to the user's config.yml
func (c *AppConfig) WriteToUserConfig(updateConfig func(*UserConfig) error) error {
	userConfig, err := loadUserConfig(c.ConfigDir, &UserConfig{})
	if err != nil {
		return err
	}

	if err := updateConfig(userConfig); err != nil {
		return err
	}

	out, err := yaml.Marshal(userConfig)
	if err != nil {
		return err
	}

	return os.WriteFile(c.ConfigFilename(), out, 0o666)
}

// ConfigFilename returns the filename of the current config file
func (c *AppConfig) ConfigFilename() string {
	return filepath.Join(c.ConfigDir, "config.yml")
}
