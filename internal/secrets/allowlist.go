package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist holds path and content regex patterns excluded from Gitleaks
// detection, merged from a project-level and a user-level TOML file.
type Allowlist struct {
	Paths   []string
	Regexes []string
}

// LoadAllowlists loads and merges a project's ".gitleaks.toml" (found under
// projectPath) and a user-level allowlist file at userPath, union-style.
// A missing file is silently skipped; a malformed one returns an error.
// Either path may be empty to skip that source entirely.
func LoadAllowlists(projectPath, userPath string) (*Allowlist, error) {
	merged := &Allowlist{Paths: []string{}, Regexes: []string{}}

	if projectPath != "" {
		projectFile := filepath.Join(projectPath, ".gitleaks.toml")
		if project, err := loadAllowlistTOML(projectFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			merged.Paths = append(merged.Paths, project.Paths...)
			merged.Regexes = append(merged.Regexes, project.Regexes...)
		}
	}

	if userPath != "" {
		if user, err := loadAllowlistTOML(userPath); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			merged.Paths = append(merged.Paths, user.Paths...)
			merged.Regexes = append(merged.Regexes, user.Regexes...)
		}
	}

	return merged, nil
}

func loadAllowlistTOML(path string) (*Allowlist, error) {
	var parsed struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range parsed.Allowlist.Paths {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid path pattern %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}
	for _, pattern := range parsed.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{Paths: parsed.Allowlist.Paths, Regexes: parsed.Allowlist.Regexes}, nil
}
