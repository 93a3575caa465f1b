package pipeline

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// stagedFiles lists the regular files directly inside dir, sorted by name.
// Hidden files such as in-flight downloads are skipped.
func stagedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read staging dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ZipFiles archives the named files of dir into zipPath under their
// basenames. No names yields an empty archive.
func ZipFiles(dir string, names []string, zipPath string) error {
	if err := ensureDir(zipPath); err != nil {
		return err
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, name := range names {
		if err := addZipEntry(zw, filepath.Join(dir, name), name); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize zip: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close zip file: %w", err)
	}
	return nil
}

// PruneDir deletes every staged file of dir not listed in keep and returns
// the removed names.
func PruneDir(dir string, keep map[string]struct{}) ([]string, error) {
	names, err := stagedFiles(dir)
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, name := range names {
		if _, ok := keep[name]; !ok {
			stale = append(stale, name)
		}
	}
	if err := DrainDir(dir, stale); err != nil {
		return nil, err
	}
	return stale, nil
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat staged file: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("zip copy %s: %w", name, err)
	}
	return nil
}

// DrainDir deletes names from dir.
func DrainDir(dir string, names []string) error {
	for _, name := range names {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove staged file %s: %w", name, err)
		}
	}
	return nil
}
