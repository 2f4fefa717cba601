package verify

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"
)

// Options tunes one verification pass.
type Options struct {
	// Exclude holds doublestar globs matched against each file's
	// slash-separated path relative to the corpus root.
	Exclude []string
	// TreeLevel mirrors the -t counter: at 1 parse trees are compared
	// against sibling .sexp goldens, at 2 the full diff is logged.
	TreeLevel int
}

// FileResult records one file's verdict.
type FileResult struct {
	Path   string
	OK     bool
	Detail string
}

// Result is the outcome of verifying one corpus directory.
// Status is zero iff every checked file conformed to the grammar.
type Result struct {
	Status int
	Files  []FileResult
}

// Failed returns results for the files that did not conform.
func (r Result) Failed() []FileResult {
	var out []FileResult
	for _, fr := range r.Files {
		if !fr.OK {
			out = append(out, fr)
		}
	}
	return out
}

// Verifier checks every source file under a corpus root against a grammar.
type Verifier struct {
	grammar *Grammar
	log     *zap.Logger
}

// NewVerifier builds a verifier over an already-loaded grammar handle.
func NewVerifier(grammar *Grammar, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{grammar: grammar, log: log}
}

// Verify walks root and parses every file carrying one of the grammar's
// extensions, minus exclusions. The walk error and per-file read errors are
// returned; parse rejections are data in the Result, not errors.
func (v *Verifier) Verify(ctx context.Context, root string, opts Options) (Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(v.grammar.Language)
	defer parser.Close()

	res := Result{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(v.grammar.Extensions, filepath.Ext(path)) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if excluded(opts.Exclude, filepath.ToSlash(rel)) {
			return nil
		}
		fr, err := v.checkFile(ctx, parser, path, opts.TreeLevel)
		if err != nil {
			return err
		}
		res.Files = append(res.Files, fr)
		if !fr.OK {
			res.Status = 1
			v.log.Warn("file failed verification",
				zap.String("file", path), zap.String("detail", fr.Detail))
		}
		return nil
	})
	if err != nil {
		return Result{Status: 1}, fmt.Errorf("verifying %s: %w", root, err)
	}
	return res, nil
}

func (v *Verifier) checkFile(ctx context.Context, parser *sitter.Parser, path string, treeLevel int) (FileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, err
	}
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return FileResult{Path: path, Detail: err.Error()}, nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return FileResult{Path: path, Detail: firstErrorNode(root, content)}, nil
	}
	if treeLevel >= 1 {
		if detail, ok := v.compareTree(root, path, treeLevel); !ok {
			return FileResult{Path: path, Detail: detail}, nil
		}
	}
	return FileResult{Path: path, OK: true}, nil
}

// compareTree diffs the parse tree's S-expression against a sibling
// <file>.sexp golden. Files without a golden pass trivially.
func (v *Verifier) compareTree(root *sitter.Node, path string, treeLevel int) (string, bool) {
	want, err := os.ReadFile(path + ".sexp")
	if err != nil {
		return "", true
	}
	got := root.String()
	diff := cmp.Diff(strings.TrimSpace(string(want)), got)
	if diff == "" {
		return "", true
	}
	if treeLevel >= 2 {
		v.log.Info("parse tree mismatch", zap.String("file", path), zap.String("diff", diff))
	}
	return "parse tree differs from reference", false
}

// firstErrorNode walks to the shallowest error or missing node and renders
// a short location for the failure detail.
func firstErrorNode(n *sitter.Node, content []byte) string {
	var find func(*sitter.Node) *sitter.Node
	find = func(n *sitter.Node) *sitter.Node {
		if n.IsError() || n.IsMissing() {
			return n
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil && c.HasError() {
				if hit := find(c); hit != nil {
					return hit
				}
			}
		}
		return nil
	}
	hit := find(n)
	if hit == nil {
		return "syntax error"
	}
	pt := hit.StartPoint()
	return fmt.Sprintf("syntax error at line %d, column %d", pt.Row+1, pt.Column+1)
}
