// Package tracking records a job run on knitfab.
//
// A Session downloads Data the job uses and registers Data the job produces,
// putting tags which tell the lineage: job type, session id, upstream Data and config.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/logger"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/rest"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/retry"
)

var (
	ErrSessionClosed     = errors.New("tracking session is closed")
	ErrInvalidReference  = errors.New("invalid artifact reference")
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrAmbiguousPayload  = errors.New("cannot decide payload file")
	ErrUnsafePayload     = errors.New("payload has unsafe entry")
	ErrEmptyArtifact     = errors.New("artifact has no files")
	ErrArtifactLogged    = errors.New("artifact is logged already")
	ErrArtifactNotLogged = errors.New("artifact is not logged yet")
	ErrUploadFailed      = errors.New("uploading artifact failed")
	ErrTransientFailed   = errors.New("knitfab failed to store artifact")
	ErrAckTimeout        = errors.New("timed out waiting for knitfab to store artifact")
)

const (
	TagKeyName         = "name"
	TagKeyType         = "type"
	TagKeyDescription  = "description"
	TagKeyJobType      = "job_type"
	TagKeySession      = "session"
	TagKeyUpstream     = "upstream"
	TagKeyConfigPrefix = "config."
)

const (
	DefaultWaitTimeout  = 10 * time.Minute
	DefaultPollInterval = 1 * time.Second
)

// Session is a run of a job.
//
// Create it with Init, and Close it when the job is over.
type Session struct {
	id      string
	jobType string
	client  rest.KnitClient

	logger      *log.Logger
	progressOut io.Writer
	envTags     []tags.Tag
	waitTimeout time.Duration
	backoff     retry.Backoff

	workdir string
	config  *Config

	mu       sync.Mutex
	upstream []string
	closed   bool
}

type Option func(*Session) *Session

func WithLogger(l *log.Logger) Option {
	return func(s *Session) *Session {
		s.logger = l
		return s
	}
}

// WithTags sets tags to be put on every artifact logged in the session.
//
// System tags are ignored.
func WithTags(t []tags.Tag) Option {
	return func(s *Session) *Session {
		s.envTags = append(s.envTags, t...)
		return s
	}
}

// WithProgressOut sets where progress bars are drawn. Default is stderr.
func WithProgressOut(w io.Writer) Option {
	return func(s *Session) *Session {
		s.progressOut = w
		return s
	}
}

// WithWaitTimeout bounds how long Artifact.Wait waits for knitfab to store an artifact.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Session) *Session {
		s.waitTimeout = d
		return s
	}
}

// WithBackoff sets the backoff between polls in Artifact.Wait.
func WithBackoff(b retry.Backoff) Option {
	return func(s *Session) *Session {
		s.backoff = b
		return s
	}
}

// Init starts a Session.
//
// # Args
//
// - ctx: context. Init returns ctx.Err() if it is done already.
//
// - client: knitfab client
//
// - jobType: kind of the job, put on artifacts as "job_type" tag.
//
// - options
//
// # Returns
//
// - *Session
//
// - error
func Init(ctx context.Context, client rest.KnitClient, jobType string, options ...Option) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if jobType == "" {
		return nil, errors.New("job type is empty")
	}

	s := &Session{
		id:          uuid.NewString(),
		jobType:     jobType,
		client:      client,
		logger:      logger.Null(),
		progressOut: os.Stderr,
		waitTimeout: DefaultWaitTimeout,
		backoff:     retry.StaticBackoff(DefaultPollInterval),
	}
	for _, o := range options {
		s = o(s)
	}
	s.config = newConfig(s.logger)

	workdir, err := os.MkdirTemp("", "tracking-"+s.id+"-")
	if err != nil {
		return nil, err
	}
	s.workdir = workdir

	s.logger.Printf("session %s started (%s:%s)", s.id, TagKeyJobType, s.jobType)
	return s, nil
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) JobType() string {
	return s.jobType
}

// Dir is the scratch directory of the Session. It is removed on Close.
func (s *Session) Dir() string {
	return s.workdir
}

// Config is the configuration recorded on the Session.
func (s *Session) Config() *Config {
	return s.config
}

// Upstream returns knit#id of Data used in the Session, in order of use.
func (s *Session) Upstream() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.upstream...)
}

// Close ends the Session and removes downloaded and staged files.
//
// Closing twice is no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.workdir); err != nil {
		return fmt.Errorf("cannot clean up session directory %s: %w", s.workdir, err)
	}
	s.logger.Printf("session %s closed", s.id)
	return nil
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) addUpstream(knitId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.upstream {
		if u == knitId {
			return
		}
	}
	s.upstream = append(s.upstream, knitId)
}

// lineageTags are tags telling where an artifact comes from.
func (s *Session) lineageTags() []tags.UserTag {
	ret := []tags.UserTag{
		{Key: TagKeyJobType, Value: s.jobType},
		{Key: TagKeySession, Value: s.id},
	}
	for _, u := range s.Upstream() {
		ret = append(ret, tags.UserTag{Key: TagKeyUpstream, Value: u})
	}
	for _, e := range s.config.Entries() {
		ret = append(ret, tags.UserTag{Key: TagKeyConfigPrefix + e.Key, Value: e.Value})
	}
	for _, t := range s.envTags {
		if ut := new(tags.UserTag); t.AsUserTag(ut) {
			ret = append(ret, *ut)
		}
	}
	return ret
}
