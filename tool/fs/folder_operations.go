package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/tool"
)

type folderArgs struct {
	Path       string `json:"path" description:"Parent directory"`
	FolderName string `json:"folder_name" description:"Name of the folder"`
}

type childFolderArgs struct {
	Path        string `json:"path" description:"Parent directory"`
	ChildFolder string `json:"child_folder" description:"Name of the child folder"`
}

type filterFoldersArgs struct {
	Path       string `json:"path" description:"Directory to inspect"`
	FilterName string `json:"filter_name" description:"Substring the folder name must contain"`
}

type renameFolderArgs struct {
	Path          string `json:"path" description:"Parent directory"`
	OldFolderName string `json:"old_folder_name" description:"Current folder name"`
	NewFolderName string `json:"new_folder_name" description:"New folder name"`
}

type transferFolderArgs struct {
	SourcePath      string `json:"source_path" description:"Directory containing the folder"`
	DestinationPath string `json:"destination_path" description:"Target directory"`
	FolderName      string `json:"folder_name" description:"Name of the folder"`
}

type noArgs struct{}

// FolderOperations returns the tools of the folder operations role.
func (tb *Toolbox) FolderOperations() []tool.Tool {
	return []tool.Tool{
		tool.NewTypedTool("create_folder", "Creates a new folder in the specified path.", tb.createFolder),
		tool.NewTypedTool("get_current_folder", "Returns the current working folder.", tb.getCurrentFolder),
		tool.NewTypedTool("list_folders", "Returns a list of all folders in the specified directory.", tb.listFolders),
		tool.NewTypedTool("go_to_parent_folder", "Returns the path of the parent folder.", tb.goToParentFolder),
		tool.NewTypedTool("go_to_child_folder", "Returns the path of the specified child folder.", tb.goToChildFolder),
		tool.NewTypedTool("search_folder_by_name", "Searches for a folder by name in the specified directory and its parent directories, returning its path if found.", tb.searchFolderByName),
		tool.NewTypedTool("count_folders", "Counts the number of folders in the specified directory.", tb.countFolders),
		tool.NewTypedTool("filter_folders_by_name", "Returns the folders in the specified directory whose name contains the filter.", tb.filterFoldersByName),
		tool.NewTypedTool("rename_folder", "Renames a specified folder in the directory.", tb.renameFolder),
		tool.NewTypedTool("move_folder", "Moves a folder from the source path to the destination path.", tb.moveFolder),
		tool.NewTypedTool("copy_folder", "Copies a folder from the source path to the destination path.", tb.copyFolder),
		tool.NewTypedTool("list_subfolders", "Returns a list of all subfolders in the specified directory.", tb.listSubfolders),
		tool.NewTypedTool("get_folder_size", "Returns the total size in bytes of the files directly inside the specified folder.", tb.getFolderSize),
	}
}

func isDirEntry(de fs.DirEntry) bool { return de.IsDir() }

func (tb *Toolbox) createFolder(tc *core.ToolContext, a folderArgs) (any, error) {
	p, err := tb.resolve("create_folder", a.Path, a.FolderName)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p, 0o755); err != nil {
		return nil, err
	}

	logResult(tc, "create_folder", "dir", p)

	return tb.display(p), nil
}

func (tb *Toolbox) getCurrentFolder(_ *core.ToolContext, _ noArgs) (any, error) {
	if tb.confined {
		return ".", nil
	}
	return tb.root, nil
}

func (tb *Toolbox) listFolders(_ *core.ToolContext, a pathArgs) (any, error) {
	p, err := tb.resolve("list_folders", a.Path)
	if err != nil {
		return nil, err
	}
	return entries("list_folders", p, isDirEntry)
}

func (tb *Toolbox) listSubfolders(_ *core.ToolContext, a pathArgs) (any, error) {
	p, err := tb.resolve("list_subfolders", a.Path)
	if err != nil {
		return nil, err
	}
	return entries("list_subfolders", p, isDirEntry)
}

func (tb *Toolbox) goToParentFolder(_ *core.ToolContext, a pathArgs) (any, error) {
	p, err := tb.resolve("go_to_parent_folder", a.Path, "..")
	if err != nil {
		return nil, err
	}
	return tb.display(p), nil
}

func (tb *Toolbox) goToChildFolder(_ *core.ToolContext, a childFolderArgs) (any, error) {
	p, err := tb.resolve("go_to_child_folder", a.Path, a.ChildFolder)
	if err != nil {
		return nil, err
	}

	if !isDir(p) {
		return nil, notFound("go_to_child_folder", "child folder", a.ChildFolder, a.Path)
	}

	return tb.display(p), nil
}

// searchFolderByName looks for folderName in path, then in each ancestor,
// stopping at the filesystem root (or the toolbox root when confined).
func (tb *Toolbox) searchFolderByName(tc *core.ToolContext, a folderArgs) (any, error) {
	dir, err := tb.resolve("search_folder_by_name", a.Path)
	if err != nil {
		return nil, err
	}

	for {
		candidate, err := tb.resolve("search_folder_by_name", dir, a.FolderName)
		if err != nil {
			return nil, err
		}
		if isDir(candidate) {
			logResult(tc, "search_folder_by_name", "found", candidate)
			return tb.display(candidate), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir || (tb.confined && dir == tb.root) {
			break
		}
		dir = parent
	}

	return nil, notFound("search_folder_by_name", "folder", a.FolderName, a.Path)
}

func (tb *Toolbox) countFolders(tc *core.ToolContext, a pathArgs) (any, error) {
	folders, err := tb.listFolders(tc, a)
	if err != nil {
		return nil, toolNamed(err, "count_folders")
	}
	return len(folders.([]string)), nil
}

func (tb *Toolbox) filterFoldersByName(_ *core.ToolContext, a filterFoldersArgs) (any, error) {
	p, err := tb.resolve("filter_folders_by_name", a.Path)
	if err != nil {
		return nil, err
	}

	return entries("filter_folders_by_name", p, func(de fs.DirEntry) bool {
		return de.IsDir() && strings.Contains(de.Name(), a.FilterName)
	})
}

func (tb *Toolbox) renameFolder(tc *core.ToolContext, a renameFolderArgs) (any, error) {
	oldPath, err := tb.resolve("rename_folder", a.Path, a.OldFolderName)
	if err != nil {
		return nil, err
	}

	newPath, err := tb.resolve("rename_folder", a.Path, a.NewFolderName)
	if err != nil {
		return nil, err
	}

	if !isDir(oldPath) {
		return nil, notFound("rename_folder", "folder", a.OldFolderName, a.Path)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, err
	}

	logResult(tc, "rename_folder", "from", oldPath, "to", newPath)

	return tb.display(newPath), nil
}

func (tb *Toolbox) folderTransfer(toolName string, a transferFolderArgs) (string, string, error) {
	src, err := tb.resolve(toolName, a.SourcePath, a.FolderName)
	if err != nil {
		return "", "", err
	}

	dst, err := tb.resolve(toolName, a.DestinationPath, a.FolderName)
	if err != nil {
		return "", "", err
	}

	if !isDir(src) {
		return "", "", notFound(toolName, "folder", a.FolderName, a.SourcePath)
	}

	if _, err := os.Stat(dst); err == nil {
		return "", "", tool.NewToolError(toolName, fmt.Sprintf("destination '%s' already exists", tb.display(dst)), tool.CodeExecution)
	}

	return src, dst, nil
}

func (tb *Toolbox) moveFolder(tc *core.ToolContext, a transferFolderArgs) (any, error) {
	src, dst, err := tb.folderTransfer("move_folder", a)
	if err != nil {
		return nil, err
	}

	if err := os.Rename(src, dst); err != nil {
		return nil, err
	}

	logResult(tc, "move_folder", "from", src, "to", dst)

	return tb.display(dst), nil
}

func (tb *Toolbox) copyFolder(tc *core.ToolContext, a transferFolderArgs) (any, error) {
	src, dst, err := tb.folderTransfer("copy_folder", a)
	if err != nil {
		return nil, err
	}

	if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
		return nil, err
	}

	logResult(tc, "copy_folder", "from", src, "to", dst)

	return tb.display(dst), nil
}

func (tb *Toolbox) getFolderSize(_ *core.ToolContext, a folderArgs) (any, error) {
	p, err := tb.resolve("get_folder_size", a.Path, a.FolderName)
	if err != nil {
		return nil, err
	}

	if !isDir(p) {
		return nil, notFound("get_folder_size", "folder", a.FolderName, a.Path)
	}

	des, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, de := range des {
		if !de.Type().IsRegular() {
			continue
		}
		if info, err := de.Info(); err == nil {
			total += info.Size()
		}
	}

	return total, nil
}

// ToolSet names one of the four tool sets.
type ToolSet string

// Tool sets, one per worker role.
const (
	SetFileOperations   ToolSet = "file_operations"
	SetFileSearch       ToolSet = "file_search"
	SetFileUtils        ToolSet = "file_utils"
	SetFolderOperations ToolSet = "folder_operations"
)

// Sets lists the available tool sets in a stable order.
func Sets() []ToolSet {
	return []ToolSet{SetFileOperations, SetFileSearch, SetFileUtils, SetFolderOperations}
}

// Tools returns the tools of the named set.
func (tb *Toolbox) Tools(set ToolSet) ([]tool.Tool, error) {
	switch set {
	case SetFileOperations:
		return tb.FileOperations(), nil
	case SetFileSearch:
		return tb.FileSearch(), nil
	case SetFileUtils:
		return tb.FileUtils(), nil
	case SetFolderOperations:
		return tb.FolderOperations(), nil
	default:
		return nil, fmt.Errorf("fs: unknown tool set %q (known: %v)", set, Sets())
	}
}
