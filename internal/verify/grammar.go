// Package verify runs the grammar verifier over an extracted corpus
// directory. The verifier is a tree-sitter grammar: a file conforms when it
// parses without error or missing nodes.
package verify

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Grammar is the immutable verifier handle built once per process and
// shared by every worker.
type Grammar struct {
	Name       string
	Language   *sitter.Language
	Extensions []string
}

// LoadGrammar resolves a grammar name to its compiled tree-sitter language.
func LoadGrammar(name string) (*Grammar, error) {
	switch name {
	case "python":
		return &Grammar{
			Name:       "python",
			Language:   python.GetLanguage(),
			Extensions: []string{".py", ".pyw"},
		}, nil
	}
	return nil, fmt.Errorf("unknown grammar %q", name)
}
