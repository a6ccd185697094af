package rest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/data"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/archive"
	kio "github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/utils/io"
)

var ErrChecksumUnmatch = errors.New("checksum unmatch")

const checksumTrailer = "x-checksum-md5"

type Progress[T any] interface {
	// EstimatedTotalSize returns the total size of files to be archived.
	//
	// This is estimated and not compressed size.
	EstimatedTotalSize() int64

	// ProgressedSize returns the raw size of archived files so far.
	ProgressedSize() int64

	// ProgressingFile returns the file name which is currently being archived.
	ProgressingFile() string

	// Error returns error caused during the task.
	Error() error

	// Result returns the result of the operation.
	//
	// bool is true if the operation has been succeeded.
	Result() (T, bool)

	// Done returns a channel which is closed when the task is over.
	Done() <-chan struct{}

	// Sent returns a channel which is closed when the whole payload is sent to the server.
	Sent() <-chan struct{}
}

type progress struct {
	p archive.Progress

	mu       sync.Mutex
	e        error
	result   *data.Detail
	resultOk bool

	done     chan struct{}
	sent     chan struct{}
	sentOnce sync.Once
}

func (p *progress) EstimatedTotalSize() int64 {
	return p.p.EstimatedTotalSize()
}

func (p *progress) ProgressedSize() int64 {
	return p.p.ProgressedSize()
}

func (p *progress) ProgressingFile() string {
	return p.p.ProgressingFile()
}

func (p *progress) Error() error {
	if err := p.p.Error(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.e
}

func (p *progress) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.e = err
}

func (p *progress) succeed(d *data.Detail) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = d
	p.resultOk = true
}

func (p *progress) Result() (*data.Detail, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.resultOk
}

func (p *progress) Done() <-chan struct{} {
	return p.done
}

func (p *progress) Sent() <-chan struct{} {
	return p.sent
}

func (p *progress) markSent() {
	p.sentOnce.Do(func() { close(p.sent) })
}

func (c *client) PostData(ctx context.Context, source string, dereference bool) Progress[*data.Detail] {
	ctx, cancel := context.WithCancel(ctx)

	r, w := io.Pipe()
	md5writer := kio.NewMD5Writer(w)
	gzwriter := gzip.NewWriter(md5writer)
	taropts := []archive.TarOption{}
	if dereference {
		taropts = append(taropts, archive.FollowSymlinks())
	}
	prog := &progress{
		sent: make(chan struct{}),
		done: make(chan struct{}),
		p:    archive.GoTar(ctx, source, gzwriter, taropts...),
	}

	treader := kio.NewTriggerReader(r)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apipath("data"), treader)
	if err != nil {
		cancel()
		r.Close()
		w.Close()
		prog.fail(err)
		prog.markSent()
		close(prog.done)
		return prog
	}
	req.Trailer = http.Header{}
	req.Header.Add("Content-Type", "application/tar+gzip")
	req.Header.Add("Trailer", checksumTrailer)
	req.ContentLength = -1
	treader.OnEnd(func() {
		req.Trailer.Set(checksumTrailer, hex.EncodeToString(md5writer.Sum()))
		prog.markSent()
	})

	go func() {
		<-prog.p.Done()
		if err := prog.p.Error(); err != nil {
			cancel()
			w.CloseWithError(err)
			return
		}
		if err := gzwriter.Close(); err != nil {
			w.CloseWithError(err)
			return
		}
		w.Close()
	}()

	go func() {
		defer close(prog.done)
		defer prog.markSent()
		defer cancel()
		defer r.Close()

		resp, err := c.httpclient.Do(req)
		if err != nil {
			prog.fail(err)
			return
		}
		defer resp.Body.Close()

		res := &data.Detail{}
		if err := unmarshalJsonResponse(
			resp, res,
			MessageFor{
				Status4xx: fmt.Sprintf("sending data is rejected by server (status code = %d)", resp.StatusCode),
				Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
			},
		); err != nil {
			prog.fail(err)
			return
		}
		prog.succeed(res)
	}()

	return prog
}

func (c *client) PutTagsForData(ctx context.Context, knitId string, change tags.Change) (*data.Detail, error) {
	reqBody, err := json.Marshal(change)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPut, c.apipath("data", knitId), bytes.NewReader(reqBody),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := data.Detail{}
	if err := unmarshalJsonResponse(
		resp, &res,
		MessageFor{
			Status4xx: fmt.Sprintf("tagging data is rejected by server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) GetDataRaw(ctx context.Context, knitId string, handler func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apipath("data", knitId), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := unmarshalStreamResponse(
		resp,
		MessageFor{
			Status4xx: fmt.Sprintf("downloading data is rejected by server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	)
	if err != nil {
		return err
	}

	chr := kio.NewMD5Reader(body)
	tr := kio.NewTriggerReader(chr)
	var hasherr error
	tr.OnEnd(func() {
		// trailers are available only after the body is read through.
		serverChecksum := resp.Trailer.Get(checksumTrailer)
		if serverChecksum == "" {
			hasherr = fmt.Errorf("%w: server response is incomplete", ErrChecksumUnmatch)
			return
		}
		actualChecksum := hex.EncodeToString(chr.Sum())
		if serverChecksum != actualChecksum {
			hasherr = fmt.Errorf(
				"%w: server sent: %s, calculated: %s",
				ErrChecksumUnmatch, serverChecksum, actualChecksum,
			)
		}
	})

	if err := handler(tr); err != nil {
		return err
	}
	// drain the rest, so that checksum is verified.
	if _, err := io.Copy(io.Discard, tr); err != nil {
		return err
	}
	return hasherr
}

type FileEntry struct {
	// Header is the header of the entry.
	Header tar.Header

	// Content of file.
	Body io.Reader
}

func (c *client) GetData(ctx context.Context, knitId string, handler func(FileEntry) error) error {
	return c.GetDataRaw(ctx, knitId, func(r io.Reader) error {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		defer gzr.Close()

		tarr := tar.NewReader(gzr)
		for {
			hdr, err := tarr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if err := handler(FileEntry{Header: *hdr, Body: tarr}); err != nil {
				return err
			}
			if _, err := io.Copy(io.Discard, tarr); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *client) FindData(ctx context.Context, query []tags.Tag) ([]data.Detail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apipath("data"), nil)
	if err != nil {
		return nil, err
	}
	if 0 < len(query) {
		q := req.URL.Query()
		for _, t := range query {
			q.Add("tag", t.String())
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	found := make([]data.Detail, 0, 5)
	if err := unmarshalJsonResponse(
		resp, &found,
		MessageFor{
			Status4xx: fmt.Sprintf("[BUG] client is not compatible with the server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return nil, err
	}
	return found, nil
}
