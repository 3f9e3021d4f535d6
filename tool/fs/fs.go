// Package fs provides the file and folder tool sets handed to FileMesh
// workers. Every tool resolves its path arguments through a Toolbox, which can
// confine all operations to a root directory.
package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/tool"
)

// CodeOutsideRoot marks a path that escapes the configured root.
const CodeOutsideRoot = "OUTSIDE_ROOT"

// Options configure a Toolbox.
type Options struct {
	// Root confines every path to this directory. Relative paths are resolved
	// against it. Empty means the process working directory, unconfined.
	Root string
	// MaxReadBytes caps read_file and content search. Zero means 1 MiB.
	MaxReadBytes int64
}

// Toolbox resolves paths and builds the tool sets. It holds no per-run state
// and is safe to share across concurrent runs.
type Toolbox struct {
	root     string
	confined bool
	maxRead  int64
}

// New creates a Toolbox. The root directory must exist.
func New(optFns ...func(o *Options)) (*Toolbox, error) {
	opts := Options{MaxReadBytes: 1 << 20}
	for _, fn := range optFns {
		fn(&opts)
	}

	tb := &Toolbox{maxRead: opts.MaxReadBytes, confined: opts.Root != ""}

	root := opts.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("fs: working directory: %w", err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fs: resolve root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("fs: root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fs: root %q is not a directory", root)
	}

	tb.root = abs

	return tb, nil
}

// Root returns the absolute base directory.
func (tb *Toolbox) Root() string { return tb.root }

// resolve turns a tool path argument into an absolute path, rejecting
// escapes from a confined root.
func (tb *Toolbox) resolve(toolName string, elem ...string) (string, error) {
	p := filepath.Join(elem...)
	if !filepath.IsAbs(p) {
		p = filepath.Join(tb.root, p)
	}
	p = filepath.Clean(p)

	if tb.confined {
		rel, err := filepath.Rel(tb.root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", tool.NewToolError(toolName, fmt.Sprintf("path %q is outside the root", filepath.Join(elem...)), CodeOutsideRoot)
		}
	}

	return p, nil
}

// display renders a path for the model. Confined toolboxes report paths
// relative to the root so they can be passed back verbatim.
func (tb *Toolbox) display(p string) string {
	if !tb.confined {
		return p
	}
	rel, err := filepath.Rel(tb.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

func (tb *Toolbox) displayAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = tb.display(p)
	}
	return out
}

func notFound(toolName, what, name, dir string) error {
	return tool.NewToolError(toolName, fmt.Sprintf("the %s '%s' does not exist in '%s'", what, name, dir), tool.CodeNotFound)
}

func notADir(toolName, dir string) error {
	return tool.NewToolError(toolName, fmt.Sprintf("the path '%s' is not a directory", dir), tool.CodeNotADir)
}

// requireDir returns a classified error unless p is an existing directory.
func requireDir(toolName, p string) error {
	info, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return tool.NewToolError(toolName, fmt.Sprintf("the path '%s' does not exist", p), tool.CodeNotFound)
	case err != nil:
		return err
	case !info.IsDir():
		return notADir(toolName, p)
	}
	return nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// entries lists names in dir filtered by keep.
func entries(toolName, dir string, keep func(fs.DirEntry) bool) ([]string, error) {
	if err := requireDir(toolName, dir); err != nil {
		return nil, err
	}

	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, de := range des {
		if keep(de) {
			names = append(names, de.Name())
		}
	}
	return names, nil
}

func logResult(tc *core.ToolContext, toolName string, args ...any) {
	tc.LogDebug("fs."+toolName, args...)
}
