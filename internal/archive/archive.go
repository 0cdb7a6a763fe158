// Package archive builds the gzip-compressed tarball shipped to the host.
//
// Only top-level entries of the project root are considered; each one that
// is not excluded by name is added recursively. Inside those trees, any
// entry whose relative path contains the uploads marker is dropped together
// with its subtree, so public/ ships but public/uploads/ does not.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
)

// ExclusionSet decides which entries are left out of the archive.
type ExclusionSet struct {
	// Names are matched by exact equality against a top-level entry name
	// or an entry's slash-separated path relative to the root.
	Names []string

	// Marker drops any entry whose relative path contains it. Empty disables it.
	Marker string
}

// Excludes reports whether the entry at rel (slash-separated, relative to
// the root) is left out.
func (s ExclusionSet) Excludes(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, name := range s.Names {
		if rel == strings.TrimSuffix(filepath.ToSlash(name), "/") {
			return true
		}
	}
	return s.Marker != "" && strings.Contains(rel, s.Marker)
}

// Result describes a finished archive.
type Result struct {
	Path    string
	Entries []string
	Files   int
	Bytes   int64
}

// Options configures Create.
type Options struct {
	Root       string
	Dest       string
	Exclusions ExclusionSet
	Logger     logger.Logger
}

// Create writes a gzip-compressed tar of opts.Root to opts.Dest.
// Any failure is an ARCHIVE error; the caller owns removing opts.Dest.
func Create(ctx context.Context, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	top, err := os.ReadDir(opts.Root)
	if err != nil {
		return nil, wrapErr(err, "Couldn't list the project directory")
	}

	f, err := os.Create(opts.Dest)
	if err != nil {
		return nil, wrapErr(err, "Couldn't create "+opts.Dest)
	}

	w := &writer{
		ctx:    ctx,
		root:   opts.Root,
		dest:   opts.Dest,
		set:    opts.Exclusions,
		log:    log,
		gz:     gzip.NewWriter(f),
		result: &Result{Path: opts.Dest},
	}
	w.tw = tar.NewWriter(w.gz)

	writeErr := w.addTop(top)
	if err := w.tw.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if err := w.gz.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if err := f.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		if errors.IsCode(writeErr, errors.ErrCancelled) {
			return nil, writeErr
		}
		return nil, wrapErr(writeErr, "Error creating archive")
	}

	info, err := os.Stat(opts.Dest)
	if err != nil {
		return nil, wrapErr(err, "Couldn't stat "+opts.Dest)
	}
	w.result.Bytes = info.Size()

	return w.result, nil
}

type writer struct {
	ctx    context.Context
	root   string
	dest   string
	set    ExclusionSet
	log    logger.Logger
	gz     *gzip.Writer
	tw     *tar.Writer
	result *Result
}

func (w *writer) addTop(entries []fs.DirEntry) error {
	destAbs, _ := filepath.Abs(w.dest)

	for _, entry := range entries {
		name := entry.Name()
		if w.set.Excludes(name) {
			w.log.Debug("excluded %s", name)
			continue
		}
		if abs, _ := filepath.Abs(filepath.Join(w.root, name)); abs == destAbs {
			continue
		}
		if err := w.walk(name); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) walk(top string) error {
	return filepath.WalkDir(filepath.Join(w.root, top), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := w.ctx.Err(); ctxErr != nil {
			return errors.WrapWithCode(ctxErr, errors.ErrCancelled,
				"Deployment cancelled.", "")
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if w.set.Excludes(rel) {
			w.log.Debug("excluded %s", rel)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		return w.add(path, rel, d)
	})
}

func (w *writer) add(path, rel string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		link, err = os.Readlink(path)
		if err != nil {
			return err
		}
	case info.IsDir(), info.Mode().IsRegular():
	default:
		w.log.Debug("skipping %s: unsupported file type %s", rel, info.Mode().Type())
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = rel
	if info.IsDir() {
		hdr.Name += "/"
	}

	if err := w.tw.WriteHeader(hdr); err != nil {
		return err
	}
	w.result.Entries = append(w.result.Entries, hdr.Name)

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w.tw, f); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	w.result.Files++
	return nil
}

// List returns the entry names stored in a gzip-compressed tar, sorted.
func List(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(err, "Couldn't open "+path)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, wrapErr(err, path+" is not a gzip archive")
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapErr(err, "Couldn't read "+path)
		}
		names = append(names, hdr.Name)
	}

	sort.Strings(names)
	return names, nil
}

func wrapErr(err error, message string) error {
	return errors.WrapWithCode(err, errors.ErrArchive, message,
		"Check that every file in the project is readable.")
}
