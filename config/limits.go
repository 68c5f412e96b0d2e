package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxFileSize  = 10 << 20
	maxNodeDepth = 64
	maxEnvLen    = 10000
	maxPathLen   = 4096
)

// checkPath accepts .json, .yaml and .yml files. Relative paths must resolve
// inside the working directory.
func checkPath(path string) error {
	switch {
	case path == "":
		return errors.New("empty config path")
	case len(path) > maxPathLen:
		return fmt.Errorf("config path is %d bytes, limit %d", len(path), maxPathLen)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return fmt.Errorf("config file %s: want .json, .yaml or .yml", path)
	}

	if filepath.IsAbs(path) {
		return nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("config path %s leaves the working directory", path)
	}
	return nil
}

// readLayer reads one config file after checking its path, type and size.
func readLayer(path string) ([]byte, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("%s is %d bytes, limit %d", path, info.Size(), maxFileSize)
	}
	return os.ReadFile(path)
}

// parseLayer decodes a JSON or YAML layer into a generic map, refusing
// documents nested deeper than maxNodeDepth.
func parseLayer(data []byte) (map[string]any, error) {
	raw := map[string]any{}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return raw, nil
	}
	if d := nodeDepth(&doc); d > maxNodeDepth {
		return nil, fmt.Errorf("config nested %d levels deep, limit %d", d, maxNodeDepth)
	}
	if err := doc.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// nodeDepth counts mapping and sequence levels. Aliases are not followed.
func nodeDepth(n *yaml.Node) int {
	deepest := 0
	for _, c := range n.Content {
		deepest = max(deepest, nodeDepth(c))
	}
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		return deepest + 1
	}
	return deepest
}

func checkEnvValue(key, value string) error {
	if len(value) > maxEnvLen {
		return fmt.Errorf("%s is %d bytes, limit %d", key, len(value), maxEnvLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s contains a NUL byte", key)
	}
	return nil
}
