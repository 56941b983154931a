package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file drover looks for.
const FileName = "drover.toml"

// File is a decoded drover.toml and where it was read from. Meta reports keys
// the decoder did not recognise.
type File struct {
	Path   string
	Config *Config
	Meta   toml.MetaData
}

// Load decodes explicit when it is set, and otherwise the drover.toml that
// Locate finds from dir. It returns nil and no error when there is no file.
func Load(explicit, dir string) (*File, error) {
	path := explicit
	if path == "" {
		found, err := Locate(dir)
		if err != nil {
			return nil, err
		}
		if found == "" {
			return nil, nil
		}
		path = found
	}
	return Decode(path)
}

// Locate returns the absolute path of the drover.toml in dir or its nearest
// ancestor, or "" when no directory up to the root has one.
func Locate(dir string) (string, error) {
	d, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("locating %s: %w", FileName, err)
	}
	for {
		path := filepath.Join(d, FileName)
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path, nil
		}
		up := filepath.Dir(d)
		if up == d {
			return "", nil
		}
		d = up
	}
}

// Decode parses the TOML file at path into a Config.
func Decode(path string) (*File, error) {
	f := &File{Path: path, Config: &Config{}}
	md, err := toml.DecodeFile(path, f.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	f.Meta = md
	return f, nil
}
