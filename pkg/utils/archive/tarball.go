package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

type Progress interface {
	// EstimatedTotalSize returns the total size of files to be archived.
	//
	// This is estimated and not compressed size.
	EstimatedTotalSize() int64

	// ProgressedSize returns the size of archived files.
	//
	// This is raw (not compressed) size.
	ProgressedSize() int64

	// ProgressingFile returns the file name which is currently being archived.
	ProgressingFile() string

	// Error returns error caused during archiving.
	Error() error

	// Done returns a channel which is closed when archiving is done.
	Done() <-chan struct{}
}

type progress struct {
	totalSize atomic.Int64
	doneSize  atomic.Int64

	mux  sync.Mutex
	file string
	err  error

	done chan struct{}
}

func (m *progress) EstimatedTotalSize() int64 {
	return m.totalSize.Load()
}

func (m *progress) ProgressedSize() int64 {
	return m.doneSize.Load()
}

func (m *progress) ProgressingFile() string {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.file
}

func (m *progress) setFile(f string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.file = f
}

func (m *progress) Error() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.err
}

func (m *progress) fail(err error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.err == nil {
		m.err = err
	}
}

func (m *progress) Done() <-chan struct{} {
	return m.done
}

type tarOption struct {
	followSymlinks bool
}

type TarOption func(*tarOption) *tarOption

// FollowSymlinks makes GoTar store targets of symlinks instead of links themselves.
func FollowSymlinks() TarOption {
	return func(o *tarOption) *tarOption {
		o.followSymlinks = true
		return o
	}
}

// GoTar archives files under root into dest in background goroutine.
//
// # Args
//
// - ctx context.Context: context to be used for archiving.
//
// - root string: root directory where it collects files from.
//
// - dest io.Writer: where tar stream is to be written.
// dest is not closed by GoTar.
//
// # Returns
//
// - Progress: monitor object to watch the progress of archiving.
// If archiving cannot be started, Progress is already done and has the error.
func GoTar(ctx context.Context, root string, dest io.Writer, options ...TarOption) Progress {
	opt := &tarOption{}
	for _, o := range options {
		opt = o(opt)
	}

	prog := &progress{done: make(chan struct{})}

	absroot, err := filepath.Abs(root)
	if err != nil {
		prog.fail(err)
		close(prog.done)
		return prog
	}
	if _, err := os.Stat(absroot); err != nil {
		prog.fail(err)
		close(prog.done)
		return prog
	}

	// estimate size before the first byte is written.
	if err := findFiles(absroot, opt.followSymlinks, func(_ string, info fs.FileInfo) error {
		if info.Mode().IsRegular() {
			prog.totalSize.Add(info.Size())
		}
		return nil
	}); err != nil {
		prog.fail(err)
		close(prog.done)
		return prog
	}

	go func() {
		defer close(prog.done)
		defer func() {
			switch pan := recover().(type) {
			case nil:
				// ok
			case error:
				prog.fail(pan)
			default:
				prog.fail(fmt.Errorf("%v", pan))
			}
		}()

		tarWriter := tar.NewWriter(dest)
		writer := &reportingWriter{dest: tarWriter, prog: prog}

		err := findFiles(
			absroot, opt.followSymlinks,
			func(fullpath string, fi fs.FileInfo) error {
				if err := ctx.Err(); err != nil {
					return err
				}

				relpath, err := filepath.Rel(absroot, fullpath)
				if err != nil {
					return err
				}
				if relpath == "." {
					relpath = filepath.Base(fullpath)
				}
				prog.setFile(relpath)

				linkname := ""
				if fi.Mode()&os.ModeSymlink != 0 {
					ln, err := os.Readlink(fullpath)
					if err != nil {
						return err
					}
					linkname = ln
				}

				hdr, err := tar.FileInfoHeader(fi, linkname)
				if err != nil {
					return err
				}
				hdr.Name = filepath.ToSlash(relpath)

				if err := tarWriter.WriteHeader(hdr); err != nil {
					return err
				}

				if !fi.Mode().IsRegular() {
					return nil
				}
				fp, err := ctxOpen(ctx, fullpath)
				if err != nil {
					return err
				}
				defer fp.Close()
				_, err = io.Copy(writer, fp)
				return err
			},
		)
		if err != nil {
			prog.fail(err)
			return
		}
		if err := tarWriter.Close(); err != nil {
			prog.fail(err)
		}
	}()

	return prog
}

func findFiles(from string, followLink bool, callback func(string, fs.FileInfo) error) error {
	stat, err := os.Lstat(from)
	if err != nil {
		return err
	}

	via := map[string]struct{}{}
	if stat.Mode()&os.ModeSymlink != 0 && followLink {
		s, err := os.Stat(from)
		if err != nil {
			return err
		}
		stat = s

		rpath, err := filepath.EvalSymlinks(from)
		if err != nil {
			return err
		}
		via[rpath] = struct{}{}
	}

	if !stat.IsDir() {
		return callback(from, stat)
	}

	return findFilesInDirectory(from, followLink, via, callback)
}

func findFilesInDirectory(from string, followLink bool, viaSymlink map[string]struct{}, callback func(string, fs.FileInfo) error) error {
	entries, err := os.ReadDir(from)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		err := func() error {
			fullpath := filepath.Join(from, entry.Name())
			stat, err := os.Lstat(fullpath)
			if err != nil {
				return err
			}

			if stat.Mode()&os.ModeSymlink != 0 && followLink {
				realpath, err := filepath.EvalSymlinks(fullpath)
				if err != nil {
					return err
				}
				if _, ok := viaSymlink[realpath]; ok {
					return ErrLoopSymlink
				}
				viaSymlink[realpath] = struct{}{}
				defer delete(viaSymlink, realpath)

				s, err := os.Stat(fullpath)
				if err != nil {
					return err
				}
				stat = s
			}

			if stat.IsDir() {
				return findFilesInDirectory(fullpath, followLink, viaSymlink, callback)
			}

			return callback(fullpath, stat)
		}()

		if err != nil {
			return err
		}
	}
	return nil
}

var ErrLoopSymlink = errors.New("symlink loop detected")

// open file as long as ctx is alive.
func ctxOpen(ctx context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	return &ctxReader{ctx: ctx, r: f}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.ReadCloser
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

func (r *ctxReader) Close() error {
	return r.r.Close()
}

type reportingWriter struct {
	dest io.Writer
	prog *progress
}

func (w *reportingWriter) Write(p []byte) (int, error) {
	n, err := w.dest.Write(p)
	w.prog.doneSize.Add(int64(n))
	return n, err
}
