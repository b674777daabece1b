// Package project locates the web application being deployed and reads
// its optional vercel.json.
//
// vercel.json is commonly edited by hand and may contain comments, so this
// package uses github.com/tidwall/jsonc to strip comments and trailing
// commas before parsing with the standard encoding/json library.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// VercelFile is the name of the Vercel project configuration file.
const VercelFile = "vercel.json"

// VercelJSON represents the subset of vercel.json that vercel-deploy reads.
// Other fields are silently ignored during parsing.
type VercelJSON struct {
	// Name is the (legacy) project name field.
	Name string `json:"name,omitempty"`

	// Public controls source visibility of deployments.
	Public *bool `json:"public,omitempty"`

	// BuildCommand and OutputDirectory are reported in verbose output only.
	BuildCommand    string `json:"buildCommand,omitempty"`
	OutputDirectory string `json:"outputDirectory,omitempty"`
}

// Resolve makes dir absolute and verifies that it exists and is a
// directory.
//
// Returns a CLIError with ExitDirectoryNotFound wrapping
// model.ErrDirectoryNotFound if it does not.
func Resolve(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", model.WrapCLIError(model.ExitDirectoryNotFound,
				fmt.Sprintf("project directory %s", abs), model.ErrDirectoryNotFound)
		}
		return "", fmt.Errorf("checking %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", model.WrapCLIError(model.ExitDirectoryNotFound,
			fmt.Sprintf("project directory %s is not a directory", abs), model.ErrDirectoryNotFound)
	}
	return abs, nil
}

// LoadVercelJSON reads dir/vercel.json. A missing file is not an error:
// it returns (nil, nil).
func LoadVercelJSON(dir string) (*VercelJSON, error) {
	path := filepath.Join(dir, VercelFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var v VercelJSON
	if err := json.Unmarshal(jsonc.ToJSON(data), &v); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("failed to parse %s", path), err)
	}
	return &v, nil
}

// ResolveName picks the project name for the primary deploy:
//  1. explicit, when non-empty
//  2. "name" from vercel.json, when present
//  3. the directory basename, normalized to Vercel's rules
//
// The result is validated with model.ValidateProjectName.
func ResolveName(dir, explicit string, vj *VercelJSON) (string, error) {
	name := explicit
	if name == "" && vj != nil {
		name = vj.Name
	}
	derived := name == ""
	if derived {
		name = sanitizeName(filepath.Base(dir))
	}

	if err := model.ValidateProjectName(name); err != nil {
		if derived {
			// Names made only of characters Vercel rejects (e.g. non-ASCII)
			// sanitize to nothing.
			return "", model.WrapCLIError(model.ExitConfigInvalid,
				fmt.Sprintf("cannot derive a project name from directory %q; pass --name or set project_name in vercel-deploy.yaml",
					filepath.Base(dir)), err)
		}
		return "", model.WrapCLIError(model.ExitConfigInvalid, "cannot determine project name", err)
	}
	return name, nil
}

// sanitizeName lowercases s, maps spaces and other separators to hyphens
// and drops characters Vercel does not accept.
func sanitizeName(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '/':
			b.WriteRune('-')
		}
	}

	name := strings.TrimLeft(b.String(), "._-")
	for strings.Contains(name, "---") {
		name = strings.ReplaceAll(name, "---", "--")
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
