// Package xanconfig loads the optional .xanrc.yml defaults file, the
// same way the teacher's database.ParseGeneratorConfig decodes a YAML
// file with strict field checking and merges override-wins-if-set over
// a base config (database.MergeGeneratorConfig).
package xanconfig

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the run-wide defaults a .xanrc.yml may set; CLI flags
// always take precedence when explicitly supplied (MergeOverCLI below
// only fills in zero-valued fields).
type Config struct {
	Delimiter  string `yaml:"delimiter"`
	ErrorsMode string `yaml:"errors"`
	TmpDir     string `yaml:"tmp_dir"`
	Threads    int    `yaml:"threads"`
	Seed       int64  `yaml:"seed"`
}

// Load decodes path, or returns a zero Config if path is empty or does
// not exist: the rc file is optional, unlike the teacher's required
// generator config file.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return parseFromBytes(buf)
}

func parseFromBytes(buf []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MergeOverCLI fills zero-valued fields of cli from cfg, giving CLI
// flags precedence whenever they were explicitly set — the same
// override-wins-if-set rule as the teacher's MergeGeneratorConfig,
// just with the base/override roles swapped (the file is the base).
func MergeOverCLI(cfg Config, cli Config) Config {
	result := cfg
	if cli.Delimiter != "" {
		result.Delimiter = cli.Delimiter
	}
	if cli.ErrorsMode != "" {
		result.ErrorsMode = cli.ErrorsMode
	}
	if cli.TmpDir != "" {
		result.TmpDir = cli.TmpDir
	}
	if cli.Threads != 0 {
		result.Threads = cli.Threads
	}
	if cli.Seed != 0 {
		result.Seed = cli.Seed
	}
	return result
}

// DefaultPath returns the conventional rc file location, "./.xanrc.yml",
// checked relative to the working directory the same way sqldef looks
// for a config file passed on the command line rather than searching
// a home directory — xan-go keeps that "explicit over implicit" choice
// but defaults to a fixed relative name so most invocations need no flag.
func DefaultPath() string {
	const name = ".xanrc.yml"
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return ""
}
