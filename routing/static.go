package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ilpswitch/ilp"
)

// StaticRoute is one operator-pinned route from the static routes file.
type StaticRoute struct {
	Prefix  string `yaml:"prefix"`
	NextHop string `yaml:"nextHop"`
}

type staticRoutesFile struct {
	Routes []StaticRoute `yaml:"routes"`
}

// LoadStaticRoutes reads the YAML static-routes file at path and returns a
// table populated with its entries. Static routes never expire and carry no
// discovery path.
func LoadStaticRoutes(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routing: read static routes: %w", err)
	}
	var file staticRoutesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("routing: parse static routes: %w", err)
	}
	table := NewTable()
	for i, entry := range file.Routes {
		prefix, err := ilp.ParseAddress(entry.Prefix)
		if err != nil {
			return nil, fmt.Errorf("routing: static route %d: %w", i, err)
		}
		if entry.NextHop == "" {
			return nil, fmt.Errorf("routing: static route %d (%s): missing nextHop", i, entry.Prefix)
		}
		table.AddRoute(&Route{Prefix: prefix, NextHop: entry.NextHop})
	}
	return table, nil
}
