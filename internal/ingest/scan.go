package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pountzas/plix/internal/media"
)

var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".avi":  {},
	".m4v":  {},
	".mov":  {},
	".wmv":  {},
	".webm": {},
	".ts":   {},
	".flv":  {},
}

// ScanDirectory walks root and returns every video file beneath it, ordered
// by path. Hidden files and directories are skipped.
func ScanDirectory(root string) ([]media.RawFile, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}

	var files []media.RawFile
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		if rel == "." {
			rel = ""
		}
		files = append(files, media.RawFile{
			Name:         name,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			RelativePath: rel,
			RootPath:     root,
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scan root %s does not exist", root)
		}
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}

func filePath(file media.RawFile) string {
	return filepath.Join(file.RootPath, file.RelativePath, file.Name)
}
