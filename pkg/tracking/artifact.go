package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/data"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/rest"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/retry"
)

type artifactFile struct {
	source string
	name   string
}

// Artifact is a Data to be registered.
//
// Build it with NewArtifact and AddFile, register with Session.LogArtifact,
// and then Wait until knitfab stores it.
type Artifact struct {
	name        string
	typ         string
	description string
	files       []artifactFile

	mu      sync.Mutex
	upload  *upload
	result  *data.Detail
	waitErr error
	waited  bool
}

type upload struct {
	session *Session
	staging string
	prog    rest.Progress[*data.Detail]
}

func NewArtifact(name, typ, description string) *Artifact {
	return &Artifact{name: name, typ: typ, description: description}
}

func (a *Artifact) Name() string {
	return a.name
}

type addFileOption struct {
	name string
}

type AddFileOption func(*addFileOption) *addFileOption

// AsName sets the file name in the artifact. Default is the base name of the source.
func AsName(name string) AddFileOption {
	return func(o *addFileOption) *addFileOption {
		o.name = name
		return o
	}
}

// AddFile puts a regular file into the artifact.
//
// The file is read when the artifact is logged.
func (a *Artifact) AddFile(path string, options ...AddFileOption) error {
	opt := &addFileOption{name: filepath.Base(path)}
	for _, o := range options {
		opt = o(opt)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.upload != nil {
		return fmt.Errorf("%w: %s", ErrArtifactLogged, a.name)
	}

	if opt.name == "" || opt.name != filepath.Base(opt.name) || opt.name == "." || opt.name == ".." {
		return fmt.Errorf("invalid file name in artifact: %q", opt.name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	stat, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !stat.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	for _, f := range a.files {
		if f.name == opt.name {
			return fmt.Errorf("artifact %s has %s already", a.name, opt.name)
		}
	}

	a.files = append(a.files, artifactFile{source: abs, name: opt.name})
	return nil
}

// tags to be put on the artifact.
func (a *Artifact) tags(s *Session) []tags.UserTag {
	ret := []tags.UserTag{
		{Key: TagKeyName, Value: a.name},
		{Key: TagKeyType, Value: a.typ},
		{Key: TagKeyDescription, Value: a.description},
	}
	for _, t := range s.lineageTags() {
		dup := false
		for _, r := range ret {
			if r.Equal(t) {
				dup = true
				break
			}
		}
		if !dup {
			ret = append(ret, t)
		}
	}
	return ret
}

// LogArtifact starts uploading the artifact.
//
// Uploading goes on in background. Call Artifact.Wait to finish it.
func (s *Session) LogArtifact(ctx context.Context, a *Artifact) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.upload != nil {
		return fmt.Errorf("%w: %s", ErrArtifactLogged, a.name)
	}
	if len(a.files) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyArtifact, a.name)
	}

	staging, err := os.MkdirTemp(s.workdir, "staging-")
	if err != nil {
		return err
	}
	for _, f := range a.files {
		if err := os.Symlink(f.source, filepath.Join(staging, f.name)); err != nil {
			os.RemoveAll(staging)
			return err
		}
	}

	s.logger.Printf("sending artifact %s...", a.name)
	a.upload = &upload{
		session: s,
		staging: staging,
		prog:    s.client.PostData(ctx, staging, true),
	}
	return nil
}

// Wait blocks until knitfab stores the artifact.
//
// Wait shows the uploading progress, tags the new Data,
// and then polls knitfab until the Data is no longer transient.
//
// # Returns
//
// - *data.Detail: metadata of the stored Data.
//
// - error: ErrArtifactNotLogged, ErrUploadFailed, ErrTransientFailed, ErrAckTimeout or context errors.
// Once Wait has returned, later calls return the same result.
func (a *Artifact) Wait(ctx context.Context) (*data.Detail, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.waited {
		return a.result, a.waitErr
	}
	if a.upload == nil {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotLogged, a.name)
	}

	a.result, a.waitErr = a.upload.wait(ctx, a)
	a.waited = true
	return a.result, a.waitErr
}

func (u *upload) wait(ctx context.Context, a *Artifact) (*data.Detail, error) {
	defer os.RemoveAll(u.staging)
	s := u.session

	if err := u.watch(ctx); err != nil {
		return nil, err
	}
	if err := u.prog.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUploadFailed, a.name, err)
	}
	registered, ok := u.prog.Result()
	if !ok {
		return nil, fmt.Errorf("%w: %s: server did not respond", ErrUploadFailed, a.name)
	}
	s.logger.Printf("registered: %s -> %s:%s", a.name, tags.KeyKnitId, registered.KnitId)

	s.logger.Println("tagging...")
	if _, err := s.client.PutTagsForData(
		ctx, registered.KnitId, tags.Change{AddTags: a.tags(s)},
	); err != nil {
		return nil, fmt.Errorf("%w: %s: tagging %s:%s: %w", ErrUploadFailed, a.name, tags.KeyKnitId, registered.KnitId, err)
	}

	s.logger.Printf("waiting for %s:%s to be stored...", tags.KeyKnitId, registered.KnitId)
	stored, err := s.awaitSettled(ctx, registered.KnitId)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("artifact %s is stored as %s:%s", a.name, tags.KeyKnitId, stored.KnitId)
	return stored, nil
}

// watch draws progress bar until the upload is over.
func (u *upload) watch(ctx context.Context) error {
	prog := u.prog
	bar := bytesBar(u.session.progressOut, prog.EstimatedTotalSize())
	bar.Start()
	defer bar.Finish()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	update := func(prefix string) {
		bar.SetTotal(prog.EstimatedTotalSize())
		bar.SetCurrent(prog.ProgressedSize())
		bar.Set("prefix", prefix)
	}

	for sent := false; !sent; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			update(ellipsis(prog.ProgressingFile(), 60) + ":")
		case <-prog.Sent():
			update("")
			sent = true
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-prog.Done():
		return nil
	}
}

// awaitSettled polls knitfab until the Data loses knit#transient tag.
func (s *Session) awaitSettled(ctx context.Context, knitId string) (*data.Detail, error) {
	tctx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()

	query := []tags.Tag{{Key: tags.KeyKnitId, Value: knitId}}
	settled, err := retry.Blocking(tctx, s.backoff, func() (*data.Detail, error) {
		found, err := s.client.FindData(tctx, query)
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			if d.KnitId != knitId {
				continue
			}
			switch d.Transient() {
			case "":
				return &d, nil
			case tags.ValueKnitTransientFailed:
				return nil, fmt.Errorf(
					"%w: %s:%s is %s:%s",
					ErrTransientFailed, tags.KeyKnitId, knitId,
					tags.KeyKnitTransient, tags.ValueKnitTransientFailed,
				)
			default:
				return nil, retry.ErrRetry
			}
		}
		// not visible yet
		return nil, retry.ErrRetry
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s:%s (waited %s)", ErrAckTimeout, tags.KeyKnitId, knitId, s.waitTimeout)
		}
		return nil, err
	}
	return settled, nil
}
