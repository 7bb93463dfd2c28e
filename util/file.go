package util

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteJson writes the JSON representation of obj to the file, going through
// a temp file in the same directory so a crash never leaves a half written
// config behind.
func WriteJson(file string, obj interface{}) error {
	configDir := filepath.Dir(file)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return err
	}

	bs, err := json.MarshalIndent(obj, "", "    ")
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(configDir, ".*"+filepath.Base(file))
	if err != nil {
		return err
	}
	tempFileName := tempFile.Name()

	if _, err = tempFile.Write(bs); err != nil {
		_ = tempFile.Close()
		return err
	}
	if err = tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempFileName, file)
}

// ReadJson reads the file into res and returns it.
func ReadJson(file string, res interface{}) (interface{}, error) {
	bs, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(bs, res); err != nil {
		return nil, err
	}
	return res, nil
}
