package config

import "github.com/DatapuntAmsterdam/authorization/internal/access"

// LevelConfig overrides the built-in level table.
type LevelConfig struct {
	// Default names the sentinel level for users without an entry.
	Default     string            `yaml:"default"`
	Definitions []LevelDefinition `yaml:"definitions"`
}

// LevelDefinition defines one level in the config file.
type LevelDefinition struct {
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

// ToDefinition converts a config LevelDefinition to an access.Definition.
func (d LevelDefinition) ToDefinition() access.Definition {
	return access.Definition{
		Name:  d.Name,
		Value: access.Level(d.Value),
	}
}

// BuildLevels creates the level table from the configuration, falling back
// to the built-in table when none is configured.
func (c *Config) BuildLevels() (*access.Levels, error) {
	if len(c.Levels.Definitions) == 0 {
		return access.BuiltinLevels(), nil
	}

	defs := make([]access.Definition, 0, len(c.Levels.Definitions))
	for _, d := range c.Levels.Definitions {
		defs = append(defs, d.ToDefinition())
	}

	def := c.Levels.Default
	if def == "" {
		def = "DEFAULT"
	}
	return access.NewLevels(defs, def)
}
