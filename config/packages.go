package config

import (
	"os"
	"strings"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/aquasecurity/advisory-aggregator/types"
)

// LoadPackages reads a YAML list of package references:
//
//   - name: lodash
//     version: 4.17.20
func LoadPackages(path string) ([]types.PackageRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open packages file: %w", err)
	}
	defer f.Close()

	var refs []types.PackageRef
	if err = yaml.NewDecoder(f).Decode(&refs); err != nil {
		return nil, xerrors.Errorf("failed to decode packages file %s: %w", path, err)
	}
	for i, ref := range refs {
		if strings.TrimSpace(ref.Name) == "" {
			return nil, xerrors.Errorf("package #%d has no name", i+1)
		}
	}
	return refs, nil
}

// ParsePackageRef parses "name@version". Scoped npm names keep their leading "@".
func ParsePackageRef(s string) (types.PackageRef, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return types.PackageRef{}, xerrors.Errorf("invalid package reference %q, expected name@version", s)
	}
	return types.PackageRef{Name: s[:i], Version: s[i+1:]}, nil
}
