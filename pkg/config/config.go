package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configDir       string = "reval"
	configDirHidden string = ".reval"
	configFile      string = "config.yml"
)

// DefaultFuncEvalTimeout is used when the configuration does not specify
// func-eval-timeout.
const DefaultFuncEvalTimeout = time.Second

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// FuncEvalTimeout is the maximum time a single function evaluation may
	// run in the debuggee before it is abandoned. Once an evaluation times
	// out no further evaluations are allowed until the debuggee is resumed.
	FuncEvalTimeout time.Duration `yaml:"func-eval-timeout,omitempty"`

	// RunAllThreads lets the other threads of the debuggee run while a
	// function evaluation is in progress.
	RunAllThreads bool `yaml:"run-all-threads"`

	// ProtocolVersion is the debugger protocol version advertised by the
	// simulated agent, in major.minor form.
	ProtocolVersion string `yaml:"protocol-version,omitempty"`

	// PointerSize is the pointer size, in bytes, of the simulated target.
	PointerSize int `yaml:"pointer-size,omitempty"`
}

// Timeout returns the function evaluation timeout, using
// DefaultFuncEvalTimeout when none was configured.
func (c *Config) Timeout() time.Duration {
	if c == nil || c.FuncEvalTimeout <= 0 {
		return DefaultFuncEvalTimeout
	}
	return c.FuncEvalTimeout
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return &Config{}, fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to get config file path: %v", err)
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			return &Config{}, fmt.Errorf("error creating default config file: %v", err)
		}
	}
	defer f.Close()

	return Read(f)
}

// Read decodes a configuration from r.
func Read(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to decode config file: %v", err)
	}

	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f io.Writer) error {
	_, err := io.WriteString(f,
		`# Configuration file for reval.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Maximum time a function evaluation may run in the target before it is
# abandoned. After a timeout further evaluations are refused until the
# target is resumed.
# func-eval-timeout: 1s

# Let the other threads of the target run while a function evaluation is
# in progress.
# run-all-threads: false

# Protocol version advertised by the simulated agent.
# protocol-version: "2.57"

# Pointer size of the simulated target.
# pointer-size: 8
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	if configPath := os.Getenv("REVAL_CONFIG_DIR"); configPath != "" {
		return filepath.Join(configPath, file), nil
	}

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, configDir, file), nil
	}
	return filepath.Join(userHomeDir, configDirHidden, file), nil
}
