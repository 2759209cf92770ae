package backup

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"example.com/activitystore/internal/store"
)

// writeArchive zips the contents of dir into zipPath. Entry names are
// relative to dir, so the archive holds users/... and the manifest at its root.
func writeArchive(ctx context.Context, dir, zipPath string) error {
	return store.WriteFileAtomic(zipPath, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			header, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			header.Name = filepath.ToSlash(rel)
			if d.IsDir() {
				header.Name += "/"
				_, err = zw.CreateHeader(header)
				return err
			}
			header.Method = zip.Deflate
			entry, err := zw.CreateHeader(header)
			if err != nil {
				return err
			}
			return copyInto(entry, path)
		})
		if walkErr != nil {
			zw.Close()
			return walkErr
		}
		return zw.Close()
	})
}

func copyInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
