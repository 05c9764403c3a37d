package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config declares one external tool.
type Config struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile is the structure of tools.yaml.
type ConfigFile struct {
	Tools []Config `yaml:"tools" json:"tools"`
}

// LoadTools reads a tools file (YAML, or JSON by extension). A missing file
// declares no tool.
func LoadTools(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	byName := make(map[string]Config, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("%s: tool without name", filepath.Base(path))
		}
		if tool.Command == "" {
			return nil, fmt.Errorf("%s: tool %s has no command", filepath.Base(path), tool.Name)
		}
		byName[tool.Name] = tool
	}
	tools := make([]Config, 0, len(byName))
	for _, tool := range byName {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools, nil
}
