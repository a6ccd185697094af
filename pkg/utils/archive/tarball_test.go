package archive_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/archive"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/try"
)

func readTar(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	got := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return got
		}
		if err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeSymlink {
			got[hdr.Name] = "-> " + hdr.Linkname
			continue
		}
		got[hdr.Name] = string(try.To(io.ReadAll(tr)).OrFatal(t))
	}
}

func TestGoTar(t *testing.T) {
	t.Run("archive non-existing-path", func(t *testing.T) {
		progress := archive.GoTar(
			context.Background(),
			filepath.Join(t.TempDir(), "non-existing-path"),
			new(bytes.Buffer),
		)
		<-progress.Done()
		if err := progress.Error(); err == nil {
			t.Fatal("GoTar did not cause error")
		}
	})

	type When struct {
		followSymlinks bool
	}
	type Then struct {
		content map[string]string
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			outside := t.TempDir()
			if err := os.WriteFile(filepath.Join(outside, "payload.csv"), []byte("a,b\n1,2\n"), 0600); err != nil {
				t.Fatal(err)
			}

			root := t.TempDir()
			if err := os.MkdirAll(filepath.Join(root, "sub"), 0700); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(root, "sub", "note.txt"), []byte("note"), 0600); err != nil {
				t.Fatal(err)
			}
			if err := os.Symlink(filepath.Join(outside, "payload.csv"), filepath.Join(root, "data.csv")); err != nil {
				t.Fatal(err)
			}

			options := []archive.TarOption{}
			if when.followSymlinks {
				options = append(options, archive.FollowSymlinks())
			}

			dest := new(bytes.Buffer)
			prog := archive.GoTar(context.Background(), root, dest, options...)
			<-prog.Done()
			if err := prog.Error(); err != nil {
				t.Fatal(err)
			}

			got := readTar(t, dest)
			if len(got) != len(then.content) {
				t.Errorf("entries: (actual, expected) = (%v, %v)", got, then.content)
			}
			for name, want := range then.content {
				if name == "data.csv" && !when.followSymlinks {
					want = "-> " + filepath.Join(outside, "payload.csv")
				}
				if got[name] != want {
					t.Errorf("entry %s: (actual, expected) = (%q, %q)", name, got[name], want)
				}
			}

			if when.followSymlinks {
				if prog.EstimatedTotalSize() != int64(len("a,b\n1,2\n")+len("note")) {
					t.Errorf("unexpected estimated size: %d", prog.EstimatedTotalSize())
				}
				if prog.ProgressedSize() != prog.EstimatedTotalSize() {
					t.Errorf(
						"progressed size does not reach estimation: %d / %d",
						prog.ProgressedSize(), prog.EstimatedTotalSize(),
					)
				}
			}
		}
	}

	t.Run("it stores symlink target when following symlinks", theory(
		When{followSymlinks: true},
		Then{content: map[string]string{
			"data.csv":     "a,b\n1,2\n",
			"sub/note.txt": "note",
		}},
	))

	t.Run("it stores symlink as such when not following symlinks", theory(
		When{followSymlinks: false},
		Then{content: map[string]string{
			"data.csv":     "",
			"sub/note.txt": "note",
		}},
	))

	t.Run("it stops when context is canceled", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, "a"), []byte("content"), 0600); err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		prog := archive.GoTar(ctx, root, io.Discard)
		<-prog.Done()
		if !errors.Is(prog.Error(), context.Canceled) {
			t.Errorf("unexpected error: %v", prog.Error())
		}
	})
}
