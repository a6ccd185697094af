// Package knitd is an in-process fake of the Data part of knitfab API.
package knitd

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/data"
	apierr "github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/errors"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/profiles"
)

const checksumTrailer = "x-checksum-md5"

// Data is a snapshot of a Data stored in Server.
type Data struct {
	KnitId    string
	Tags      []tags.Tag
	Payload   []byte
	Timestamp time.Time

	// Transient is the value of knit#transient tag. Empty when the Data is settled.
	Transient string
}

// Detail builds API response for the Data.
func (d Data) Detail() data.Detail {
	ts := append([]tags.Tag{}, d.Tags...)
	ts = append(
		ts,
		tags.Tag{Key: tags.KeyKnitId, Value: d.KnitId},
		tags.Tag{Key: tags.KeyKnitTimestamp, Value: d.Timestamp.Format(time.RFC3339Nano)},
	)
	if d.Transient != "" {
		ts = append(ts, tags.Tag{Key: tags.KeyKnitTransient, Value: d.Transient})
	}
	return data.Detail{KnitId: d.KnitId, Tags: ts}
}

// Files extracts regular files in the payload.
func (d Data) Files() (map[string][]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(d.Payload))
	if err != nil {
		return nil, err
	}
	defer gzr.Close()

	files := map[string][]byte{}
	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		buf, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		files[hdr.Name] = buf
	}
}

type entry struct {
	Data
	pendingPolls int
}

type config struct {
	pendingPolls    int
	failSettling    bool
	rejectPost      bool
	corruptDownload bool
}

type Option func(*config) *config

// WithPendingPolls keeps new Data transient until it is looked up n times by FindData.
func WithPendingPolls(n int) Option {
	return func(c *config) *config {
		c.pendingPolls = n
		return c
	}
}

// WithFailedSettling makes new Data "knit#transient:failed" once its pending polls are over.
func WithFailedSettling() Option {
	return func(c *config) *config {
		c.failSettling = true
		return c
	}
}

// WithRejectingPost makes POST /data respond 500.
func WithRejectingPost() Option {
	return func(c *config) *config {
		c.rejectPost = true
		return c
	}
}

// WithCorruptDownload makes GET /data/{id} send wrong checksum.
func WithCorruptDownload() Option {
	return func(c *config) *config {
		c.corruptDownload = true
		return c
	}
}

// Server is a fake knitfab.
type Server struct {
	conf config
	srv  *httptest.Server

	mu    sync.Mutex
	seq   int
	clock time.Time
	data  map[string]*entry
	order []string
	log   []string
}

// New starts a fake knitfab. It is closed when the test ends.
func New(t *testing.T, options ...Option) *Server {
	t.Helper()
	conf := config{}
	for _, o := range options {
		conf = *o(&conf)
	}

	s := &Server{
		conf:  conf,
		clock: time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC),
		data:  map[string]*entry{},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(testLog{t: t})
	e.Logger.SetLevel(log.WARN)
	api := e.Group("/api")
	api.POST("/data", s.postData)
	api.PUT("/data/:knitId", s.putTags)
	api.GET("/data/:knitId", s.getData)
	api.GET("/data", s.findData)

	s.srv = httptest.NewServer(e)
	t.Cleanup(s.srv.Close)
	return s
}

// testLog sends server logs to the test log.
type testLog struct{ t *testing.T }

func (l testLog) Write(p []byte) (int, error) {
	l.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// Profile is a knitprofile pointing the server.
func (s *Server) Profile() *profiles.KnitProfile {
	return &profiles.KnitProfile{ApiRoot: s.srv.URL + "/api"}
}

// Requests returns "METHOD PATH" of requests received, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.log...)
}

// Seed stores a settled Data having files.
func (s *Server) Seed(t *testing.T, files map[string]string, userTags ...tags.Tag) string {
	t.Helper()
	payload, err := Archive(files)
	if err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.newEntry(payload)
	e.Tags = append(e.Tags, userTags...)
	return e.KnitId
}

// SeedTransient stores a Data which never settles.
func (s *Server) SeedTransient(t *testing.T, transient string, userTags ...tags.Tag) string {
	t.Helper()
	payload, err := Archive(map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.newEntry(payload)
	e.Tags = append(e.Tags, userTags...)
	e.Transient = transient
	e.pendingPolls = -1
	return e.KnitId
}

// Get returns a snapshot of the Data.
func (s *Server) Get(knitId string) (Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[knitId]
	if !ok {
		return Data{}, false
	}
	return e.snapshot(), true
}

// All returns snapshots of all Data, in registration order.
func (s *Server) All() []Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Data, 0, len(s.order))
	for _, id := range s.order {
		ret = append(ret, s.data[id].snapshot())
	}
	return ret
}

func (e *entry) snapshot() Data {
	d := e.Data
	d.Tags = append([]tags.Tag{}, e.Tags...)
	return d
}

// newEntry should be called with lock.
func (s *Server) newEntry(payload []byte) *entry {
	s.seq += 1
	s.clock = s.clock.Add(time.Second)
	e := &entry{
		Data: Data{
			KnitId:    "data-" + strconv.Itoa(s.seq),
			Payload:   payload,
			Timestamp: s.clock,
		},
	}
	s.data[e.KnitId] = e
	s.order = append(s.order, e.KnitId)
	return e
}

func (s *Server) record(c echo.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, c.Request().Method+" "+c.Request().URL.Path)
}

func errorResponse(c echo.Context, code int, reason string) error {
	return c.JSON(code, apierr.ErrorMessage{Reason: reason})
}

func (s *Server) postData(c echo.Context) error {
	s.record(c)
	if s.conf.rejectPost {
		return errorResponse(c, http.StatusInternalServerError, "storage is unavailable")
	}

	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}
	sum := md5.Sum(body)
	if got := req.Trailer.Get(checksumTrailer); got != hex.EncodeToString(sum[:]) {
		return errorResponse(
			c, http.StatusBadRequest,
			fmt.Sprintf("checksum unmatch: trailer = %q", got),
		)
	}

	s.mu.Lock()
	e := s.newEntry(body)
	if 0 < s.conf.pendingPolls || s.conf.failSettling {
		e.Transient = tags.ValueKnitTransientProcessing
		e.pendingPolls = s.conf.pendingPolls
	}
	detail := e.Detail()
	s.mu.Unlock()

	return c.JSON(http.StatusOK, detail)
}

func (s *Server) putTags(c echo.Context) error {
	s.record(c)
	change := tags.Change{}
	if err := c.Bind(&change); err != nil {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[c.Param("knitId")]
	if !ok {
		return errorResponse(c, http.StatusNotFound, "data not found")
	}

	kept := []tags.Tag{}
	for _, t := range e.Tags {
		removed := false
		for _, r := range change.RemoveTags {
			if t.Equal(tags.Tag(r)) {
				removed = true
				break
			}
		}
		if !removed {
			kept = append(kept, t)
		}
	}
	for _, a := range change.AddTags {
		dup := false
		for _, t := range kept {
			if t.Equal(tags.Tag(a)) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, tags.Tag(a))
		}
	}
	e.Tags = kept

	return c.JSON(http.StatusOK, e.Detail())
}

func (s *Server) getData(c echo.Context) error {
	s.record(c)
	s.mu.Lock()
	e, ok := s.data[c.Param("knitId")]
	var payload []byte
	if ok {
		payload = e.Payload
	}
	s.mu.Unlock()
	if !ok {
		return errorResponse(c, http.StatusNotFound, "data not found")
	}

	sum := md5.Sum(payload)
	checksum := hex.EncodeToString(sum[:])
	if s.conf.corruptDownload {
		checksum = hex.EncodeToString(make([]byte, md5.Size))
	}

	resp := c.Response()
	resp.Header().Set("Trailer", checksumTrailer)
	resp.Header().Set(echo.HeaderContentType, "application/tar+gzip")
	resp.WriteHeader(http.StatusOK)
	if _, err := resp.Write(payload); err != nil {
		return err
	}
	resp.Header().Set(checksumTrailer, checksum)
	return nil
}

func (s *Server) findData(c echo.Context) error {
	s.record(c)
	query := []tags.Tag{}
	for _, q := range c.QueryParams()["tag"] {
		t := tags.Tag{}
		if err := t.Parse(q); err != nil {
			return errorResponse(c, http.StatusBadRequest, err.Error())
		}
		query = append(query, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := []data.Detail{}
	for _, id := range s.order {
		e := s.data[id]
		detail := e.Detail()
		if !hasAll(detail.Tags, query) {
			continue
		}
		found = append(found, detail)
		e.poll(s.conf.failSettling)
	}
	return c.JSON(http.StatusOK, found)
}

// poll moves a transient Data toward settled, after it has been responded.
func (e *entry) poll(failSettling bool) {
	if e.pendingPolls < 0 || e.Transient != tags.ValueKnitTransientProcessing {
		return
	}
	if 0 < e.pendingPolls {
		e.pendingPolls -= 1
	}
	if e.pendingPolls == 0 {
		if failSettling {
			e.Transient = tags.ValueKnitTransientFailed
		} else {
			e.Transient = ""
		}
	}
}

func hasAll(have []tags.Tag, want []tags.Tag) bool {
	for _, w := range want {
		ok := false
		for _, h := range have {
			if h.Equal(w) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Archive builds tar.gz payload from files.
func Archive(files map[string]string) ([]byte, error) {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	buf := new(bytes.Buffer)
	gzw := gzip.NewWriter(buf)
	tw := tar.NewWriter(gzw)
	for _, n := range names {
		content := files[n]
		if err := tw.WriteHeader(&tar.Header{
			Name:     n,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gzw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
