package tracking

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/data"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/rest"
)

// UsedArtifact is a Data downloaded into the Session.
type UsedArtifact struct {
	Reference Reference
	Detail    data.Detail

	// Dir is where the payload is extracted.
	Dir string
}

// Name is the artifact name: the value of "name" tag.
func (u *UsedArtifact) Name() string {
	if u.Reference.Name != "" {
		return u.Reference.Name
	}
	if names := u.Detail.Values(TagKeyName); 0 < len(names) {
		return names[0]
	}
	return ""
}

// File returns the path to the payload file.
//
// It is the file whose base name is the artifact name.
// If there is no such file, the only file in the payload.
func (u *UsedArtifact) File() (string, error) {
	files := []string{}
	err := filepath.WalkDir(u.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool {
		// shallower first
		di := strings.Count(files[i], string(filepath.Separator))
		dj := strings.Count(files[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return files[i] < files[j]
	})

	if name := u.Name(); name != "" {
		for _, f := range files {
			if filepath.Base(f) == name {
				return f, nil
			}
		}
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("%w: %s has no files", ErrAmbiguousPayload, u.Reference)
	case 1:
		return files[0], nil
	default:
		return "", fmt.Errorf(
			"%w: %s has %d files and none of them is named %q",
			ErrAmbiguousPayload, u.Reference, len(files), u.Name(),
		)
	}
}

// UseArtifact downloads the Data which ref points, and records it as upstream of the Session.
//
// # Args
//
// - ctx
//
// - ref: artifact reference. See Reference for its form.
//
// # Returns
//
// - *UsedArtifact
//
// - error: ErrInvalidReference, ErrArtifactNotFound, ErrSessionClosed,
// rest.ErrChecksumUnmatch or errors from knitfab.
func (s *Session) UseArtifact(ctx context.Context, ref string) (*UsedArtifact, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	r, err := ParseReference(ref)
	if err != nil {
		return nil, err
	}
	detail, err := s.resolve(ctx, r)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(s.workdir, "artifacts", detail.KnitId)
	if err := os.MkdirAll(dest, os.FileMode(0700)); err != nil {
		return nil, err
	}

	bar := counterBar(s.progressOut)
	bar.Set("prefix", fmt.Sprintf("downloading %s:", ellipsis(r.String(), 40)))
	bar.Start()
	err = s.client.GetData(ctx, detail.KnitId, func(fe rest.FileEntry) error {
		return extract(dest, fe, func(w io.Writer) io.Writer { return bar.NewProxyWriter(w) })
	})
	bar.Finish()
	if err != nil {
		os.RemoveAll(dest)
		return nil, err
	}

	s.addUpstream(detail.KnitId)
	s.logger.Printf("using %s (knit#id:%s)", r, detail.KnitId)
	return &UsedArtifact{Reference: r, Detail: detail, Dir: dest}, nil
}

// extract writes a tar entry under dest.
//
// Only directories and regular files are extracted. Entries escaping dest are errors.
func extract(dest string, fe rest.FileEntry, wrap func(io.Writer) io.Writer) error {
	name := filepath.Clean(filepath.FromSlash(fe.Header.Name))
	if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrUnsafePayload, fe.Header.Name)
	}
	fdest := filepath.Join(dest, name)

	switch fe.Header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(fdest, os.FileMode(0700))
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(fdest), os.FileMode(0700)); err != nil {
			return err
		}
		f, err := os.OpenFile(fdest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(0600))
		if err != nil {
			return err
		}
		defer f.Close()
		// do not close proxy writer: it finishes the bar.
		if _, err := io.Copy(wrap(f), fe.Body); err != nil {
			return err
		}
		return f.Close()
	default:
		return nil
	}
}
