package utils

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/spf13/afero"
)

type Fs struct {
	AppFs afero.Fs
}

func NewFs(appFs afero.Fs) Fs {
	return Fs{AppFs: appFs}
}

// WriteJSON creates the parent directory when needed and writes data as indented JSON.
func (fs Fs) WriteJSON(filePath string, data interface{}) error {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := fs.AppFs.MkdirAll(dir, os.ModePerm); err != nil {
			return xerrors.Errorf("unable to create a directory: %w", err)
		}
	}

	f, err := fs.AppFs.Create(filePath)
	if err != nil {
		return xerrors.Errorf("unable to open a file: %w", err)
	}
	defer f.Close()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err = f.Write(b); err != nil {
		return xerrors.Errorf("failed to save a file: %w", err)
	}
	return nil
}

func (fs Fs) ReadJSON(filePath string, v interface{}) error {
	f, err := fs.AppFs.Open(filePath)
	if err != nil {
		return xerrors.Errorf("unable to open a file: %w", err)
	}
	defer f.Close()

	if err = json.NewDecoder(f).Decode(v); err != nil {
		return xerrors.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}
