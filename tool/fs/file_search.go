package fs

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/tool"
)

// errStopWalk ends a WalkDir early once a match is found.
var errStopWalk = errors.New("stop walk")

type keywordArgs struct {
	Path    string `json:"path" description:"Directory to search recursively"`
	Keyword string `json:"keyword" description:"Keyword to look for"`
}

type extensionArgs struct {
	Path      string `json:"path" description:"Directory to search"`
	Extension string `json:"extension" description:"File extension without the leading dot, e.g. txt"`
}

type modifiedAfterArgs struct {
	Path      string  `json:"path" description:"Directory to search recursively"`
	Timestamp float64 `json:"timestamp" description:"Unix timestamp in seconds"`
}

// FileSearch returns the tools of the file search role.
func (tb *Toolbox) FileSearch() []tool.Tool {
	return []tool.Tool{
		tool.NewTypedTool("search_file", "Searches for a specific file by name within a given directory tree and returns its path if found.", tb.searchFile),
		tool.NewTypedTool("search_file_by_content", "Finds all files containing a specified keyword in their content within a given directory tree.", tb.searchFileByContent),
		tool.NewTypedTool("search_files_by_extension", "Retrieves all files with a specified extension located in a given directory tree.", tb.searchFilesByExtension),
		tool.NewTypedTool("search_files_modified_after", "Identifies files modified after a specified Unix timestamp in a given directory tree.", tb.searchFilesModifiedAfter),
		tool.NewTypedTool("search_files_containing_keyword_in_name", "Locates files whose names contain a specified keyword within a given directory tree.", tb.searchFilesContainingKeywordInName),
	}
}

// walkFiles visits every regular file below dir in lexical order.
func walkFiles(toolName, dir string, visit func(p string, de fs.DirEntry) error) error {
	if err := requireDir(toolName, dir); err != nil {
		return err
	}

	err := filepath.WalkDir(dir, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped.
			if de != nil && de.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !de.Type().IsRegular() {
			return nil
		}
		return visit(p, de)
	})
	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}

func (tb *Toolbox) searchFile(tc *core.ToolContext, a fileArgs) (any, error) {
	dir, err := tb.resolve("search_file", a.Path)
	if err != nil {
		return nil, err
	}

	var found string
	err = walkFiles("search_file", dir, func(p string, de fs.DirEntry) error {
		if de.Name() == a.Filename {
			found = p
			return errStopWalk
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == "" {
		tc.LogDebug("fs.search_file.miss", "file", a.Filename, "dir", dir)
		return nil, notFound("search_file", "file", a.Filename, a.Path)
	}

	return tb.display(found), nil
}

func (tb *Toolbox) searchFileByContent(tc *core.ToolContext, a keywordArgs) (any, error) {
	dir, err := tb.resolve("search_file_by_content", a.Path)
	if err != nil {
		return nil, err
	}

	needle := []byte(a.Keyword)
	found := []string{}

	err = walkFiles("search_file_by_content", dir, func(p string, _ fs.DirEntry) error {
		f, err := os.Open(p)
		if err != nil {
			tc.LogWarn("fs.search_file_by_content.open_failed", "file", p, "error", err.Error())
			return nil
		}
		defer f.Close()

		b, err := io.ReadAll(io.LimitReader(f, tb.maxRead))
		if err == nil && bytes.Contains(b, needle) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logResult(tc, "search_file_by_content", "keyword", a.Keyword, "count", len(found))

	return tb.displayAll(found), nil
}

func (tb *Toolbox) searchFilesByExtension(tc *core.ToolContext, a extensionArgs) (any, error) {
	return tb.globExtension(tc, "search_files_by_extension", a, "**/*.")
}

// globExtension matches files by extension below a.Path using prefix, either
// recursive ("**/*.") or flat ("*.").
func (tb *Toolbox) globExtension(tc *core.ToolContext, toolName string, a extensionArgs, prefix string) (any, error) {
	dir, err := tb.resolve(toolName, a.Path)
	if err != nil {
		return nil, err
	}

	if err := requireDir(toolName, dir); err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(a.Extension, ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return nil, tool.NewToolError(toolName, "extension must be a bare suffix such as 'txt'", tool.CodeValidation)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), prefix+ext, doublestar.WithFilesOnly())
	if err != nil {
		return nil, tool.NewToolError(toolName, err.Error(), tool.CodeValidation)
	}

	found := make([]string, len(matches))
	for i, m := range matches {
		found[i] = filepath.Join(dir, filepath.FromSlash(m))
	}

	logResult(tc, toolName, "extension", ext, "count", len(found))

	return tb.displayAll(found), nil
}

func (tb *Toolbox) searchFilesModifiedAfter(tc *core.ToolContext, a modifiedAfterArgs) (any, error) {
	dir, err := tb.resolve("search_files_modified_after", a.Path)
	if err != nil {
		return nil, err
	}

	sec := int64(a.Timestamp)
	after := time.Unix(sec, int64((a.Timestamp-float64(sec))*1e9))
	found := []string{}

	err = walkFiles("search_files_modified_after", dir, func(p string, de fs.DirEntry) error {
		info, err := de.Info()
		if err == nil && info.ModTime().After(after) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logResult(tc, "search_files_modified_after", "after", after, "count", len(found))

	return tb.displayAll(found), nil
}

func (tb *Toolbox) searchFilesContainingKeywordInName(tc *core.ToolContext, a keywordArgs) (any, error) {
	dir, err := tb.resolve("search_files_containing_keyword_in_name", a.Path)
	if err != nil {
		return nil, err
	}

	found := []string{}
	err = walkFiles("search_files_containing_keyword_in_name", dir, func(p string, de fs.DirEntry) error {
		if strings.Contains(de.Name(), a.Keyword) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logResult(tc, "search_files_containing_keyword_in_name", "keyword", a.Keyword, "count", len(found))

	return tb.displayAll(found), nil
}
