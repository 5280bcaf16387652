// Package loader reads page text for ingestion. PDF parsing is left to
// external tools; this package reads what they produce:
//   - a text file whose pages are separated by form feeds ('\f')
//   - a directory of *.txt files, one page per file in name order
//   - a YAML or JSON manifest listing {text, page_num, source_doc}
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// ErrUnsupported is returned for inputs that need an external parser.
var ErrUnsupported = errors.New("unsupported input: convert the document to text first")

const pageSeparator = "\f"

// Load dispatches on the path: directories, manifests (.yaml, .yml, .json)
// and anything else as a text file.
func Load(path string) ([]types.Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDirectory(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return LoadManifest(path)
	case ".pdf":
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return LoadTextFile(path)
}

// LoadTextFile splits a file on form feeds. Pages are numbered from 1 and
// blank pages keep their number.
func LoadTextFile(path string) ([]types.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	source := filepath.Base(path)
	parts := strings.Split(string(data), pageSeparator)
	// A trailing form feed does not start a new page.
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}

	pages := make([]types.Page, 0, len(parts))
	for i, text := range parts {
		pages = append(pages, types.Page{Text: text, PageNumber: i + 1, SourceDocument: source})
	}
	return pages, nil
}

// LoadDirectory reads every *.txt file in dir as one page of a document named
// after the directory.
func LoadDirectory(dir string) ([]types.Page, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .txt pages in %s", dir)
	}
	sort.Strings(files)

	source := filepath.Base(filepath.Clean(dir))
	pages := make([]types.Page, 0, len(files))
	for i, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		pages = append(pages, types.Page{Text: string(data), PageNumber: i + 1, SourceDocument: source})
	}
	return pages, nil
}

// LoadManifest reads a list of pages. Missing page numbers become the
// 1-based position and a missing source document becomes the manifest's
// file name without extension.
func LoadManifest(path string) ([]types.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var pages []types.Page
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &pages)
	} else {
		err = yaml.Unmarshal(data, &pages)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i := range pages {
		if pages[i].PageNumber <= 0 {
			pages[i].PageNumber = i + 1
		}
		if strings.TrimSpace(pages[i].SourceDocument) == "" {
			pages[i].SourceDocument = stem
		}
	}
	return pages, nil
}
