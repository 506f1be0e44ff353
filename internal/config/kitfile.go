package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fieldwatch/aegis/internal/models"
)

// KitFile is the on-disk YAML shape of the kit list: a flat list of kits
// keyed by ID, the format an operator hand-edits.
type KitFile struct {
	Kits []models.Kit `yaml:"kits"`
}

// LoadKitFile reads and parses the YAML kit list at path. A missing file is
// treated as an empty list rather than an error, so a fleet that starts
// purely from MQTT auto-registration doesn't need a placeholder file.
func LoadKitFile(path string) ([]models.Kit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read kit file: %w", err)
	}
	var kf KitFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse kit file: %w", err)
	}
	return kf.Kits, nil
}
