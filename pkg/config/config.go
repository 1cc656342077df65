// Package config implements the persistent configuration of the
// debugger: command aliases and tunables, stored as yaml in the user's
// configuration directory.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir       string = "slate"
	configDirHidden string = ".slate"
	configFile      string = "config.yml"
	historyFile     string = ".slate_history"
)

// Config defines all configuration options available to be set through
// the config file.
type Config struct {
	// Aliases maps a command name to a list of additional names it can be
	// invoked by.
	Aliases map[string][]string `yaml:"aliases"`

	// MaxBacktraceDepth is the maximum number of frames printed by the
	// backtrace command. Zero means the default of 64.
	MaxBacktraceDepth int `yaml:"max-backtrace-depth,omitempty"`
}

// LoadConfig attempts to populate a Config object from the config.yml
// file. A missing file is not an error; defaults are returned.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return &Config{}, fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to get config file path: %v", err)
	}

	hasOldConfig, _ := hasOldConfig()
	if hasOldConfig {
		userHomeDir := getUserHomeDir()
		oldLocation := path.Join(userHomeDir, configDirHidden)
		if err := moveOldToNewPath(); err != nil {
			return &Config{}, fmt.Errorf("unable to move config to new location: %v", err)
		}
		if err := os.RemoveAll(oldLocation); err != nil {
			return &Config{}, fmt.Errorf("unable to remove old config location: %v", err)
		}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return &Config{}, err
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return &Config{}, err
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to decode config file: %v", err)
	}
	return &c, nil
}

// SaveConfig writes conf to the config.yml file.
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

// HistoryFilePath returns the path to the REPL history file.
func HistoryFilePath() (string, error) {
	return GetConfigFilePath(historyFile)
}

func getUserHomeDir() string {
	userHomeDir := "."
	usr, err := os.UserHomeDir()
	if err == nil {
		userHomeDir = usr
	}
	return userHomeDir
}

func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(fname string) (string, error) {
	if configPath := os.Getenv("XDG_CONFIG_HOME"); configPath != "" {
		return path.Join(configPath, configDir, fname), nil
	}
	return path.Join(getUserHomeDir(), configDirHidden, fname), nil
}

// hasOldConfig checks whether a config file is present in the hidden home
// directory location while XDG_CONFIG_HOME points elsewhere.
func hasOldConfig() (bool, error) {
	if os.Getenv("XDG_CONFIG_HOME") == "" {
		return false, nil
	}
	userHomeDir := getUserHomeDir()
	o := path.Join(userHomeDir, configDirHidden, configFile)
	_, err := os.Stat(o)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// moveOldToNewPath moves a config from the hidden home directory to the
// XDG location.
func moveOldToNewPath() error {
	newPath, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.Rename(path.Join(getUserHomeDir(), configDirHidden, configFile), path.Join(newPath, configFile))
}
