package client

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/rzbill/tbx/internal/eventfile"
)

// writeStructured renders v as json or yaml.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q; use text|json|yaml", format)
	}
}

// collectFiles expands args into event files. Directories are searched for
// runs; files are taken as given.
func collectFiles(fs afero.Fs, args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		isDir, err := afero.IsDir(fs, arg)
		if err != nil {
			return nil, err
		}
		if !isDir {
			files = append(files, arg)
			continue
		}
		runs, err := eventfile.Runs(fs, arg)
		if err != nil {
			return nil, err
		}
		for _, run := range runs {
			fl, err := eventfile.List(fs, filepath.Join(arg, filepath.FromSlash(run)))
			if err != nil {
				return nil, err
			}
			files = append(files, fl...)
		}
	}
	return files, nil
}
