package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models obras.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Paginacion struct {
		Size    int `yaml:"size"`
		MaxSize int `yaml:"max_size"`
	} `yaml:"paginacion"`
	Obras struct {
		// EstadoInicial is the state name opened for a freshly created obra.
		// If no active estado with that name exists the obra starts with an
		// empty history.
		EstadoInicial string `yaml:"estado_inicial"`
	} `yaml:"obras"`
	Seed struct {
		Estados []string `yaml:"estados"`
		Rubros  []string `yaml:"rubros"`
	} `yaml:"seed"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath == "" {
		return fmt.Errorf("config.server.base_path is required")
	}
	if c.Paginacion.Size <= 0 {
		return fmt.Errorf("config.paginacion.size must be positive")
	}
	if c.Paginacion.MaxSize < c.Paginacion.Size {
		return fmt.Errorf("config.paginacion.max_size must be >= size")
	}
	if c.Obras.EstadoInicial == "" {
		return fmt.Errorf("config.obras.estado_inicial is required")
	}
	for _, e := range c.Seed.Estados {
		if e == "" {
			return fmt.Errorf("config.seed.estados contains an empty name")
		}
	}
	for _, r := range c.Seed.Rubros {
		if r == "" {
			return fmt.Errorf("config.seed.rubros contains an empty name")
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "obras.yml")
}

// Load reads and validates config from the workspace, falling back to the
// defaults when the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Fields omitted
// from the file keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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
  addr: :8080
  base_path: /api

paginacion:
  size: 10
  max_size: 100

obras:
  estado_inicial: Planificacion

seed:
  estados:
    - Planificacion
    - En Licitacion
    - En Ejecucion
    - Suspendida
    - Finalizada
  rubros: []
`
