package env

import (
	"errors"
	"os"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"gopkg.in/yaml.v3"
)

// KnitEnv holds tags put on every Data the job publishes.
type KnitEnv struct {
	Tag []tags.Tag `yaml:"tag"`
}

func (ke *KnitEnv) Tags() []tags.Tag {
	return ke.Tag
}

// LoadKnitEnv reads knitenv file.
//
// A missing file is an empty KnitEnv.
func LoadKnitEnv(filepath string) (*KnitEnv, error) {
	env := KnitEnv{}

	content, err := os.ReadFile(filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &env, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(content, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
