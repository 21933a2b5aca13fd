package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// UpdateEnvFile sets keys in the .env file at path, keeping the other entries,
// and mirrors them into the process environment.
func UpdateEnvFile(path string, updates map[string]string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		env = make(map[string]string, len(updates))
	}
	for k, v := range updates {
		env[k] = v
		_ = os.Setenv(k, v)
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
