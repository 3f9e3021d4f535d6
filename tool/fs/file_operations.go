package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/tool"
)

type pathArgs struct {
	Path string `json:"path" description:"Directory path"`
}

type fileArgs struct {
	Path     string `json:"path" description:"Directory containing the file"`
	Filename string `json:"filename" description:"Name of the file"`
}

type fileContentArgs struct {
	Path     string `json:"path" description:"Directory containing the file"`
	Filename string `json:"filename" description:"Name of the file"`
	Content  string `json:"content" description:"Text content"`
}

type renameFileArgs struct {
	Path        string `json:"path" description:"Directory containing the file"`
	OldFilename string `json:"old_filename" description:"Current file name"`
	NewFilename string `json:"new_filename" description:"New file name"`
}

// FileOperations returns the tools of the file operations role.
func (tb *Toolbox) FileOperations() []tool.Tool {
	return []tool.Tool{
		tool.NewTypedTool("write_to_file", "Writes content to a file, creating it if it doesn't exist.", tb.writeToFile),
		tool.NewTypedTool("read_file", "Reads content from a file and returns it.", tb.readFile),
		tool.NewTypedTool("append_to_file", "Appends content to an existing file.", tb.appendToFile),
		tool.NewTypedTool("rename_file", "Renames a file in the specified path.", tb.renameFile),
		tool.NewTypedTool("create_directory", "Creates a new directory if it doesn't already exist.", tb.createDirectory),
		tool.NewTypedTool("list_files_in_directory", "Lists all files in a specified directory.", tb.listFilesInDirectory),
		tool.NewTypedTool("count_files_in_directory", "Counts the number of files in a specified directory.", tb.countFilesInDirectory),
		tool.NewTypedTool("file_exists", "Checks if a specified file exists.", tb.fileExists),
	}
}

func (tb *Toolbox) writeToFile(tc *core.ToolContext, a fileContentArgs) (any, error) {
	p, err := tb.resolve("write_to_file", a.Path, a.Filename)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(p, []byte(a.Content), 0o644); err != nil {
		return nil, err
	}

	logResult(tc, "write_to_file", "file", p, "bytes", len(a.Content))

	return tb.display(p), nil
}

func (tb *Toolbox) readFile(tc *core.ToolContext, a fileArgs) (any, error) {
	p, err := tb.resolve("read_file", a.Path, a.Filename)
	if err != nil {
		return nil, err
	}

	if !isFile(p) {
		return nil, notFound("read_file", "file", a.Filename, a.Path)
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, tb.maxRead+1))
	if err != nil {
		return nil, err
	}

	truncated := int64(len(b)) > tb.maxRead
	if truncated {
		b = b[:tb.maxRead]
	}

	logResult(tc, "read_file", "file", p, "bytes", len(b), "truncated", truncated)

	if truncated {
		return fmt.Sprintf("%s\n[truncated at %d bytes]", b, tb.maxRead), nil
	}

	return string(b), nil
}

func (tb *Toolbox) appendToFile(tc *core.ToolContext, a fileContentArgs) (any, error) {
	p, err := tb.resolve("append_to_file", a.Path, a.Filename)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.WriteString(a.Content); err != nil {
		return nil, err
	}

	logResult(tc, "append_to_file", "file", p)

	return tb.display(p), nil
}

func (tb *Toolbox) renameFile(tc *core.ToolContext, a renameFileArgs) (any, error) {
	oldPath, err := tb.resolve("rename_file", a.Path, a.OldFilename)
	if err != nil {
		return nil, err
	}

	newPath, err := tb.resolve("rename_file", a.Path, a.NewFilename)
	if err != nil {
		return nil, err
	}

	if !isFile(oldPath) {
		return nil, notFound("rename_file", "file", a.OldFilename, a.Path)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, err
	}

	logResult(tc, "rename_file", "from", oldPath, "to", newPath)

	return tb.display(newPath), nil
}

func (tb *Toolbox) createDirectory(tc *core.ToolContext, a pathArgs) (any, error) {
	p, err := tb.resolve("create_directory", a.Path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p, 0o755); err != nil {
		return nil, err
	}

	logResult(tc, "create_directory", "dir", p)

	return tb.display(p), nil
}

func (tb *Toolbox) listFilesInDirectory(tc *core.ToolContext, a pathArgs) (any, error) {
	p, err := tb.resolve("list_files_in_directory", a.Path)
	if err != nil {
		return nil, err
	}

	files, err := entries("list_files_in_directory", p, func(de fs.DirEntry) bool { return de.Type().IsRegular() })
	if err != nil {
		return nil, err
	}

	logResult(tc, "list_files_in_directory", "dir", p, "count", len(files))

	return files, nil
}

func (tb *Toolbox) countFilesInDirectory(tc *core.ToolContext, a pathArgs) (any, error) {
	files, err := tb.listFilesInDirectory(tc, a)
	if err != nil {
		return nil, toolNamed(err, "count_files_in_directory")
	}
	return len(files.([]string)), nil
}

func (tb *Toolbox) fileExists(_ *core.ToolContext, a fileArgs) (any, error) {
	p, err := tb.resolve("file_exists", a.Path, a.Filename)
	if err != nil {
		return nil, err
	}
	return isFile(p), nil
}

// toolNamed re-labels a ToolError raised by a delegated helper.
func toolNamed(err error, name string) error {
	if te, ok := err.(*tool.ToolError); ok {
		return tool.NewToolError(name, te.Message, te.Code)
	}
	return err
}
