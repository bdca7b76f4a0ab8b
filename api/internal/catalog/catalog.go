package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed vehicle_parts.json
var defaultVehicleParts []byte

// VehicleParts holds the enum tables a damage classification must choose from.
type VehicleParts struct {
	Groups      []string `json:"groups"`
	Parts       []string `json:"parts"`
	Types       []string `json:"types"`
	Sides       []string `json:"sides"`
	Severities  []string `json:"severities"`
	Projections []string `json:"projections"`
	Segments    []string `json:"segments"`
}

// Default returns the built-in tables.
func Default() VehicleParts {
	vp, err := parse(defaultVehicleParts)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded vehicle_parts.json: %v", err))
	}
	return vp
}

// Load reads the tables from path, falling back to the built-in ones when path is empty.
func Load(path string) (VehicleParts, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return VehicleParts{}, fmt.Errorf("read vehicle config: %w", err)
	}
	vp, err := parse(b)
	if err != nil {
		return VehicleParts{}, fmt.Errorf("%s: %w", path, err)
	}
	return vp, nil
}

func parse(b []byte) (VehicleParts, error) {
	var vp VehicleParts
	if err := json.Unmarshal(b, &vp); err != nil {
		return VehicleParts{}, fmt.Errorf("bad vehicle config: %w", err)
	}
	if err := vp.Validate(); err != nil {
		return VehicleParts{}, err
	}
	return vp, nil
}

// Validate rejects tables with an empty enum.
func (vp VehicleParts) Validate() error {
	var missing []string
	for _, t := range vp.tables() {
		if len(t.values) == 0 {
			missing = append(missing, t.name)
		}
	}
	if len(missing) > 0 {
		return errors.New("vehicle config has empty tables: " + strings.Join(missing, ", "))
	}
	return nil
}

// JSON renders the tables the way they are embedded in the vision prompt.
func (vp VehicleParts) JSON() string {
	b, _ := json.Marshal(vp)
	return string(b)
}

type table struct {
	name   string
	values []string
}

func (vp VehicleParts) tables() []table {
	return []table{
		{"groups", vp.Groups},
		{"parts", vp.Parts},
		{"types", vp.Types},
		{"sides", vp.Sides},
		{"severities", vp.Severities},
		{"projections", vp.Projections},
		{"segments", vp.Segments},
	}
}
