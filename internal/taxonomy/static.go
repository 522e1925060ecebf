package taxonomy

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed biolink.yaml
var defaultTree []byte

// treeFile is the YAML layout: each term lists its direct children.
type treeFile struct {
	Terms map[string][]string `yaml:"terms"`
}

// Static is an in-memory taxonomy. Term matching ignores case.
type Static struct {
	names    map[string]string   // folded -> canonical
	children map[string][]string // folded -> canonical children
}

// NewStatic builds a taxonomy from a parent -> children mapping.
func NewStatic(terms map[string][]string) *Static {
	s := &Static{
		names:    make(map[string]string),
		children: make(map[string][]string),
	}
	for parent, kids := range terms {
		s.add(parent)
		fp := fold(parent)
		for _, k := range kids {
			s.add(k)
			s.children[fp] = append(s.children[fp], s.names[fold(k)])
		}
	}
	return s
}

func (s *Static) add(term string) {
	f := fold(term)
	if _, ok := s.names[f]; !ok {
		s.names[f] = strings.TrimSpace(term)
	}
}

// ParseStatic reads the YAML tree format.
func ParseStatic(data []byte) (*Static, error) {
	var tf treeFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(tf.Terms) == 0 {
		return nil, fmt.Errorf("parse taxonomy: no terms")
	}
	return NewStatic(tf.Terms), nil
}

// LoadStatic reads a YAML tree from disk.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	return ParseStatic(data)
}

// Default returns the bundled Biolink subset.
func Default() *Static {
	s, err := ParseStatic(defaultTree)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: bundled taxonomy is broken: %v", err))
	}
	return s
}

// Descendants walks the tree breadth first; children keep their declared order.
func (s *Static) Descendants(_ context.Context, term string) ([]string, error) {
	root, ok := s.names[fold(term)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTerm, term)
	}

	out := []string{root}
	seen := map[string]bool{fold(root): true}
	for i := 0; i < len(out); i++ {
		for _, child := range s.children[fold(out[i])] {
			f := fold(child)
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, child)
		}
	}
	return out, nil
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
