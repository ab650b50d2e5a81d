package config

import (
	"fmt"
	"os"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"gopkg.in/yaml.v3"
)

// LoadPreferences reads a preferences YAML file. Fields the file leaves out
// keep their defaults.
func LoadPreferences(path string) (itinerary.UserPreferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return itinerary.UserPreferences{}, fmt.Errorf("failed to read preferences: %w", err)
	}

	prefs := itinerary.DefaultPreferences()
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return itinerary.UserPreferences{}, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if err := prefs.Validate(); err != nil {
		return itinerary.UserPreferences{}, err
	}
	return prefs, nil
}
