// Package assets locates, and optionally downloads, the two PanguWeather
// ONNX model files.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names.
const (
	File24 = "pangu_weather_24.onnx"
	File6  = "pangu_weather_6.onnx"
)

// DefaultURL is the download location template; {file} is replaced by the
// file name.
const DefaultURL = "https://get.ecmwf.int/repository/test-data/ai-models/pangu-weather/{file}"

// Files lists the model files in the order they are checked and loaded.
var Files = []string{File24, File6}

// ErrMissingAsset is matched by every MissingAssetError.
var ErrMissingAsset = errors.New("missing asset")

// MissingAssetError reports a model file that is not on disk.
type MissingAssetError struct {
	Path string
}

// Error implements the error interface.
func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingAsset, e.Path)
}

// Is reports whether target is ErrMissingAsset.
func (e *MissingAssetError) Is(target error) bool {
	return target == ErrMissingAsset
}

// Paths holds the resolved model files.
type Paths struct {
	Model24 string
	Model6  string
}

// Resolve checks that both model files exist under dir.
func Resolve(dir string) (Paths, error) {
	p := Paths{
		Model24: filepath.Join(dir, File24),
		Model6:  filepath.Join(dir, File6),
	}
	for _, path := range []string{p.Model24, p.Model6} {
		if err := check(path); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}

// Missing returns the model files absent from dir.
func Missing(dir string) ([]string, error) {
	var missing []string
	for _, name := range Files {
		err := check(filepath.Join(dir, name))
		switch {
		case errors.Is(err, ErrMissingAsset):
			missing = append(missing, name)
		case err != nil:
			return nil, err
		}
	}
	return missing, nil
}

func check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MissingAssetError{Path: path}
		}
		return fmt.Errorf("error accessing asset %s: %w", path, err)
	}
	if info.IsDir() {
		return &MissingAssetError{Path: path}
	}
	return nil
}
