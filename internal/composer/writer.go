package composer

import (
	"os"

	"gopkg.in/yaml.v3"
)

// WriteDescriptor writes a descriptor to a YAML file
func WriteDescriptor(d *Descriptor, path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadDescriptor reads a descriptor from a YAML file
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}

	return &d, nil
}
