package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	goodSource = "def greet(name):\n    return 'hello ' + name\n"
	badSource  = "def broken((((\n"
)

// renderTree parses one file and returns its S-expression, for freezing
// tree-comparison goldens inside tests.
func renderTree(t *testing.T, grammar *Grammar, path string) string {
	t.Helper()
	parser := sitter.NewParser()
	parser.SetLanguage(grammar.Language)
	defer parser.Close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	require.NoError(t, err)
	defer tree.Close()
	return tree.RootNode().String()
}

func newPythonVerifier(t *testing.T) *Verifier {
	t.Helper()
	grammar, err := LoadGrammar("python")
	require.NoError(t, err)
	return NewVerifier(grammar, nil)
}

func writeCorpus(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
}

func TestVerify_AllFilesConform(t *testing.T) {
	root := t.TempDir()
	writeCorpus(t, root, map[string]string{
		"pkg/__init__.py": "",
		"pkg/core.py":     goodSource,
		"setup.py":        "from setuptools import setup\nsetup()\n",
		"README.txt":      "not python, not checked",
	})

	res, err := newPythonVerifier(t).Verify(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Status)
	assert.Len(t, res.Files, 3, "only .py files are checked")
	assert.Empty(t, res.Failed())
}

func TestVerify_RejectsBadFile(t *testing.T) {
	root := t.TempDir()
	writeCorpus(t, root, map[string]string{
		"pkg/good.py": goodSource,
		"pkg/bork.py": badSource,
	})

	res, err := newPythonVerifier(t).Verify(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Status)

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, filepath.Join(root, "pkg", "bork.py"), failed[0].Path)
	assert.Contains(t, failed[0].Detail, "syntax error")
}

func TestVerify_ExclusionGlobs(t *testing.T) {
	root := t.TempDir()
	writeCorpus(t, root, map[string]string{
		"pkg/ok.py":                       goodSource,
		"pkg/failset/known_bad.py":        badSource,
		"pkg/test2to3/fixture.py":         badSource,
		"pkg/badsyntax_example.py":        badSource,
		"lib2to3/tests/data/py2_only.py":  badSource,
		"deep/nested/failset/also_bad.py": badSource,
	})

	res, err := newPythonVerifier(t).Verify(context.Background(), root, Options{
		Exclude: DefaultExclusions,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Status, "excluded fixtures must not count against the corpus")
	assert.Len(t, res.Files, 1)
}

func TestVerify_TreeComparison(t *testing.T) {
	root := t.TempDir()
	writeCorpus(t, root, map[string]string{"mod.py": "x = 1\n"})

	v := newPythonVerifier(t)

	t.Run("matching golden passes", func(t *testing.T) {
		res, err := v.Verify(context.Background(), root, Options{TreeLevel: 1})
		require.NoError(t, err)
		require.Zero(t, res.Status)

		// Freeze the current tree as the golden, then verify again.
		grammar, err := LoadGrammar("python")
		require.NoError(t, err)
		golden := renderTree(t, grammar, filepath.Join(root, "mod.py"))
		require.NoError(t, os.WriteFile(filepath.Join(root, "mod.py.sexp"), []byte(golden), 0o644))

		res, err = v.Verify(context.Background(), root, Options{TreeLevel: 1})
		require.NoError(t, err)
		assert.Zero(t, res.Status)
	})

	t.Run("stale golden fails", func(t *testing.T) {
		require.NoError(t, os.WriteFile(
			filepath.Join(root, "mod.py.sexp"),
			[]byte("(module (wrong_node))"), 0o644))

		res, err := v.Verify(context.Background(), root, Options{TreeLevel: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Status)
		require.Len(t, res.Failed(), 1)
		assert.Contains(t, res.Failed()[0].Detail, "parse tree differs")
	})
}

func TestLoadExclusions(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		got, err := LoadExclusions(filepath.Join(t.TempDir(), "exclude.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultExclusions, got)
	})

	t.Run("file replaces defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "exclude.yaml")
		require.NoError(t, os.WriteFile(path, []byte("exclude:\n  - '**/vendored/**'\n"), 0o644))
		got, err := LoadExclusions(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"**/vendored/**"}, got)
	})

	t.Run("invalid pattern rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "exclude.yaml")
		require.NoError(t, os.WriteFile(path, []byte("exclude:\n  - '[broken'\n"), 0o644))
		_, err := LoadExclusions(path)
		assert.Error(t, err)
	})
}

func TestFindCorpusDir(t *testing.T) {
	t.Run("versioned directory matches archive name", func(t *testing.T) {
		ws := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(ws, "alpha-1.0"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(ws, "alpha-1.0.tar.gz"), []byte("x"), 0o644))

		dir, ok, err := FindCorpusDir(ws, filepath.Join(ws, "alpha-1.0.tar.gz"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(ws, "alpha-1.0"), dir)
	})

	t.Run("single-file package has no directory", func(t *testing.T) {
		ws := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(ws, "gamma.py"), []byte(goodSource), 0o644))

		_, ok, err := FindCorpusDir(ws, "gamma-1.0.tar.gz")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unrelated directories do not match", func(t *testing.T) {
		ws := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(ws, "omega-3.1"), 0o755))

		_, ok, err := FindCorpusDir(ws, "gamma-1.0.tar.gz")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLoadGrammar(t *testing.T) {
	g, err := LoadGrammar("python")
	require.NoError(t, err)
	assert.Equal(t, []string{".py", ".pyw"}, g.Extensions)

	_, err = LoadGrammar("klingon")
	assert.Error(t, err)
}
