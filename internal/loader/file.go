package loader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedDocument is returned when an item file is neither a list of IDs
// nor a mapping with an items list.
var ErrUnsupportedDocument = errors.New("item file must be a list or contain an items list")

// File reads item IDs from a YAML document. Because JSON is a subset of YAML,
// JSON files are accepted too. The document is either a bare list:
//
//	- file-0
//	- file-1
//
// or a mapping with an items key:
//
//	items: [file-0, file-1]
type File struct {
	path string
}

// NewFile creates a loader for path.
func NewFile(path string) *File {
	return &File{path: path}
}

type itemDocument struct {
	Items []string `yaml:"items"`
}

// Load reads and parses the file.
func (f *File) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read item file: %w", err)
	}

	items, err := parseItems(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse item file %s: %w", f.path, err)
	}
	return items, nil
}

func parseItems(data []byte) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, ErrUnsupportedDocument
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return nil, err
		}
		return items, nil
	case yaml.MappingNode:
		var doc itemDocument
		if err := node.Decode(&doc); err != nil {
			return nil, err
		}
		if doc.Items == nil {
			return nil, ErrUnsupportedDocument
		}
		return doc.Items, nil
	default:
		return nil, ErrUnsupportedDocument
	}
}
