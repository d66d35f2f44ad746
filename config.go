package mockfs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// AuthConfig is the [auth] subtable of a route-local TOML file.
type AuthConfig struct {
	// Secret overrides the JWT signing secret.
	Secret string `mapstructure:"secret"`
}

// UploadConfig is the [upload] subtable of a route-local TOML file.
type UploadConfig struct {
	Temporary bool   `mapstructure:"temporary"`
	Alias     string `mapstructure:"alias"`
}

// CollectionConfig is the [collection] subtable of a route-local TOML file.
type CollectionConfig struct {
	IDKey  string `mapstructure:"id_key"`
	IDType string `mapstructure:"id_type"`
}

// RouteConfig is the effective configuration of one route: the left-fold of
// the server default, every ancestor config.toml and the route-local TOML.
// Only the delay and the protection flag flow from ancestors; the subtables
// apply strictly to the file they sit beside.
type RouteConfig struct {
	Delay      time.Duration
	Remap      string
	Protected  bool
	Auth       *AuthConfig
	Upload     *UploadConfig
	Collection *CollectionConfig
}

// routeEnv is the inherited environment of the directory walk. It is passed
// explicitly through the recursion, never through shared state.
type routeEnv struct {
	protected bool
	delay     time.Duration
}

// dirConfigName is the per-directory configuration file basename.
const dirConfigName = "config.toml"

// loadTOMLMap parses the TOML file at the path into a generic map.
func loadTOMLMap(path string) (map[string]interface{}, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := map[string]interface{}{}
	if err := toml.Unmarshal(b, &m); err != nil {
		return nil, newBuildError(TOMLParseFailure, path, err)
	}

	return m, nil
}

// mergeDirEnv folds the directory-level config file of the dir, if any, into
// the env. Only "protect" and "delay_ms" take part; everything else in a
// config.toml is ignored by design of the propagation rules.
func mergeDirEnv(env routeEnv, dir string) (routeEnv, error) {
	path := filepath.Join(dir, dirConfigName)
	if _, err := os.Stat(path); err != nil {
		return env, nil
	}

	m, err := loadTOMLMap(path)
	if err != nil {
		return env, err
	}

	return applyEnvKeys(env, m), nil
}

// applyEnvKeys overlays the propagating keys of the m onto the env.
func applyEnvKeys(env routeEnv, m map[string]interface{}) routeEnv {
	if v, ok := m["protect"]; ok {
		if b, ok := v.(bool); ok {
			env.protected = b
		}
	}

	if v, ok := m["delay_ms"]; ok {
		if n, ok := toInt64(v); ok && n >= 0 {
			env.delay = time.Duration(n) * time.Millisecond
		}
	}

	return env
}

// toInt64 coerces the numeric types TOML and JSON produce.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}

	return 0, false
}

// loadRouteConfig produces the effective config of a mock file: the env plus
// the sibling "<stem>.toml", when one exists.
func loadRouteConfig(env routeEnv, mockPath string) (*RouteConfig, error) {
	rc := &RouteConfig{
		Delay:     env.delay,
		Protected: env.protected,
	}

	ext := filepath.Ext(mockPath)
	tomlPath := strings.TrimSuffix(mockPath, ext) + ".toml"
	if tomlPath == mockPath {
		tomlPath = mockPath + ".toml"
	}

	if _, err := os.Stat(tomlPath); err != nil {
		return rc, nil
	}

	m, err := loadTOMLMap(tomlPath)
	if err != nil {
		return nil, err
	}

	e := applyEnvKeys(routeEnv{
		protected: rc.Protected,
		delay:     rc.Delay,
	}, m)
	rc.Protected = e.protected
	rc.Delay = e.delay

	var local struct {
		Remap      string            `mapstructure:"remap"`
		Auth       *AuthConfig       `mapstructure:"auth"`
		Upload     *UploadConfig     `mapstructure:"upload"`
		Collection *CollectionConfig `mapstructure:"collection"`
	}
	if err := mapstructure.Decode(m, &local); err != nil {
		return nil, newBuildError(TOMLParseFailure, tomlPath, err)
	}

	rc.Remap = local.Remap
	rc.Auth = local.Auth
	rc.Upload = local.Upload
	rc.Collection = local.Collection

	return rc, nil
}

// loadConfigFile parses the server-level configuration file of the s, when
// set, into the matching fields of the s. The ".json" extension means the
// file is JSON-based, ".toml" TOML-based and ".yaml"/".yml" YAML-based.
func (s *Server) loadConfigFile() error {
	if s.ConfigFile == "" {
		return nil
	}

	b, err := os.ReadFile(s.ConfigFile)
	if err != nil {
		return err
	}

	m := map[string]interface{}{}
	switch e := strings.ToLower(filepath.Ext(s.ConfigFile)); e {
	case ".json":
		err = json.Unmarshal(b, &m)
	case ".toml":
		err = toml.Unmarshal(b, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	default:
		err = fmt.Errorf(
			"mockfs: unsupported configuration file extension: %s",
			e,
		)
	}

	if err != nil {
		return err
	}

	return mapstructure.Decode(m, s)
}
