package fs

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/tool"
)

type zipArgs struct {
	Path        string `json:"path" description:"Directory whose files are compressed"`
	ZipFilename string `json:"zip_filename" description:"Name of the archive created inside path"`
}

type transferArgs struct {
	SourcePath      string `json:"source_path" description:"Directory containing the file"`
	DestinationPath string `json:"destination_path" description:"Target directory"`
	Filename        string `json:"filename" description:"Name of the file"`
}

// FileUtils returns the tools of the file utilities role.
func (tb *Toolbox) FileUtils() []tool.Tool {
	return []tool.Tool{
		tool.NewTypedTool("get_file_size", "Returns the size of a specified file in bytes.", tb.getFileSize),
		tool.NewTypedTool("compress_files_to_zip", "Compresses all files in the specified directory into a zip archive.", tb.compressFilesToZip),
		tool.NewTypedTool("list_files", "Returns a list of all files in the specified directory.", tb.listFiles),
		tool.NewTypedTool("delete_file", "Deletes the specified file from the given path.", tb.deleteFile),
		tool.NewTypedTool("copy_file", "Copies a specified file to a new location.", tb.copyFile),
		tool.NewTypedTool("find_files_by_extension", "Finds and returns the files with the specified extension directly inside a directory.", tb.findFilesByExtension),
		tool.NewTypedTool("move_file", "Moves a specified file to a new location.", tb.moveFile),
	}
}

func (tb *Toolbox) getFileSize(_ *core.ToolContext, a fileArgs) (any, error) {
	p, err := tb.resolve("get_file_size", a.Path, a.Filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return nil, notFound("get_file_size", "file", a.Filename, a.Path)
	}

	return info.Size(), nil
}

func (tb *Toolbox) compressFilesToZip(tc *core.ToolContext, a zipArgs) (any, error) {
	dir, err := tb.resolve("compress_files_to_zip", a.Path)
	if err != nil {
		return nil, err
	}

	zipPath, err := tb.resolve("compress_files_to_zip", a.Path, a.ZipFilename)
	if err != nil {
		return nil, err
	}

	names, err := entries("compress_files_to_zip", dir, func(de fs.DirEntry) bool { return de.Type().IsRegular() })
	if err != nil {
		return nil, err
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	added := 0
	for _, name := range names {
		src := filepath.Join(dir, name)
		if src == zipPath {
			continue
		}

		if err := addToZip(zw, src, name); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		added++
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	logResult(tc, "compress_files_to_zip", "archive", zipPath, "files", added)

	return tb.display(zipPath), nil
}

func addToZip(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}

func (tb *Toolbox) listFiles(tc *core.ToolContext, a pathArgs) (any, error) {
	files, err := tb.listFilesInDirectory(tc, a)
	if err != nil {
		return nil, toolNamed(err, "list_files")
	}
	return files, nil
}

func (tb *Toolbox) deleteFile(tc *core.ToolContext, a fileArgs) (any, error) {
	p, err := tb.resolve("delete_file", a.Path, a.Filename)
	if err != nil {
		return nil, err
	}

	if !isFile(p) {
		return nil, notFound("delete_file", "file", a.Filename, a.Path)
	}

	if err := os.Remove(p); err != nil {
		return nil, err
	}

	logResult(tc, "delete_file", "file", p)

	return fmt.Sprintf("File '%s' deleted.", a.Filename), nil
}

func (tb *Toolbox) copyFile(tc *core.ToolContext, a transferArgs) (any, error) {
	src, dst, err := tb.transferPaths("copy_file", a)
	if err != nil {
		return nil, err
	}

	if err := copyRegular(src, dst); err != nil {
		return nil, err
	}

	logResult(tc, "copy_file", "from", src, "to", dst)

	return tb.display(dst), nil
}

func (tb *Toolbox) moveFile(tc *core.ToolContext, a transferArgs) (any, error) {
	src, dst, err := tb.transferPaths("move_file", a)
	if err != nil {
		return nil, err
	}

	if err := os.Rename(src, dst); err != nil {
		// Cross-device moves fall back to copy and delete.
		if cerr := copyRegular(src, dst); cerr != nil {
			return nil, err
		}
		if err := os.Remove(src); err != nil {
			return nil, err
		}
	}

	logResult(tc, "move_file", "from", src, "to", dst)

	return tb.display(dst), nil
}

func (tb *Toolbox) transferPaths(toolName string, a transferArgs) (string, string, error) {
	src, err := tb.resolve(toolName, a.SourcePath, a.Filename)
	if err != nil {
		return "", "", err
	}

	dstDir, err := tb.resolve(toolName, a.DestinationPath)
	if err != nil {
		return "", "", err
	}

	if !isFile(src) {
		return "", "", notFound(toolName, "file", a.Filename, a.SourcePath)
	}

	if err := requireDir(toolName, dstDir); err != nil {
		return "", "", err
	}

	return src, filepath.Join(dstDir, a.Filename), nil
}

func copyRegular(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

func (tb *Toolbox) findFilesByExtension(tc *core.ToolContext, a extensionArgs) (any, error) {
	return tb.globExtension(tc, "find_files_by_extension", a, "*.")
}
