package mock

import (
	"context"
	"io"
	"testing"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/data"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/rest"
)

type PostDataArgs struct {
	Source      string
	Dereference bool
}

type PutTagsForDataArgs struct {
	KnitId string
	Tags   tags.Change
}

func New(t *testing.T) *mockKnitClient {
	return &mockKnitClient{t: t}
}

// MockedPostDataProgress is a Progress whose state is given by fields.
type MockedPostDataProgress struct {
	EstimatedTotalSize_ int64
	ProgressedSize_     int64
	ProgressingFile_    string
	Error_              error
	Result_             *data.Detail
	ResultOk_           bool
	Done_               <-chan struct{}
	Sent_               <-chan struct{}
}

// Finished is a MockedPostDataProgress which has been done already.
func Finished(result *data.Detail, err error) *MockedPostDataProgress {
	closed := make(chan struct{})
	close(closed)
	return &MockedPostDataProgress{
		Error_:    err,
		Result_:   result,
		ResultOk_: err == nil && result != nil,
		Done_:     closed,
		Sent_:     closed,
	}
}

func (m *MockedPostDataProgress) EstimatedTotalSize() int64 {
	return m.EstimatedTotalSize_
}

func (m *MockedPostDataProgress) ProgressedSize() int64 {
	return m.ProgressedSize_
}

func (m *MockedPostDataProgress) ProgressingFile() string {
	return m.ProgressingFile_
}

func (m *MockedPostDataProgress) Result() (*data.Detail, bool) {
	return m.Result_, m.ResultOk_
}

func (m *MockedPostDataProgress) Error() error {
	return m.Error_
}

func (m *MockedPostDataProgress) Done() <-chan struct{} {
	return m.Done_
}

func (m *MockedPostDataProgress) Sent() <-chan struct{} {
	return m.Sent_
}

type mockKnitClient struct {
	t    *testing.T
	Impl struct {
		PostData       func(ctx context.Context, source string, dereference bool) rest.Progress[*data.Detail]
		PutTagsForData func(ctx context.Context, knitId string, change tags.Change) (*data.Detail, error)
		GetDataRaw     func(ctx context.Context, knitId string, handler func(io.Reader) error) error
		GetData        func(ctx context.Context, knitId string, handler func(rest.FileEntry) error) error
		FindData       func(ctx context.Context, query []tags.Tag) ([]data.Detail, error)
	}
	Calls struct {
		PostData       []PostDataArgs
		PutTagsForData []PutTagsForDataArgs
		GetDataRaw     []string
		GetData        []string
		FindData       [][]tags.Tag
	}
}

var _ rest.KnitClient = &mockKnitClient{}

func (m *mockKnitClient) PostData(ctx context.Context, source string, dereference bool) rest.Progress[*data.Detail] {
	m.t.Helper()
	m.Calls.PostData = append(m.Calls.PostData, PostDataArgs{Source: source, Dereference: dereference})
	if m.Impl.PostData == nil {
		m.t.Fatal("PostData is not ready to be called")
	}
	return m.Impl.PostData(ctx, source, dereference)
}

func (m *mockKnitClient) PutTagsForData(ctx context.Context, knitId string, change tags.Change) (*data.Detail, error) {
	m.t.Helper()
	m.Calls.PutTagsForData = append(m.Calls.PutTagsForData, PutTagsForDataArgs{KnitId: knitId, Tags: change})
	if m.Impl.PutTagsForData == nil {
		m.t.Fatal("PutTagsForData is not ready to be called")
	}
	return m.Impl.PutTagsForData(ctx, knitId, change)
}

func (m *mockKnitClient) GetDataRaw(ctx context.Context, knitId string, handler func(io.Reader) error) error {
	m.t.Helper()
	m.Calls.GetDataRaw = append(m.Calls.GetDataRaw, knitId)
	if m.Impl.GetDataRaw == nil {
		m.t.Fatal("GetDataRaw is not ready to be called")
	}
	return m.Impl.GetDataRaw(ctx, knitId, handler)
}

func (m *mockKnitClient) GetData(ctx context.Context, knitId string, handler func(rest.FileEntry) error) error {
	m.t.Helper()
	m.Calls.GetData = append(m.Calls.GetData, knitId)
	if m.Impl.GetData == nil {
		m.t.Fatal("GetData is not ready to be called")
	}
	return m.Impl.GetData(ctx, knitId, handler)
}

func (m *mockKnitClient) FindData(ctx context.Context, query []tags.Tag) ([]data.Detail, error) {
	m.t.Helper()
	m.Calls.FindData = append(m.Calls.FindData, query)
	if m.Impl.FindData == nil {
		m.t.Fatal("FindData is not ready to be called")
	}
	return m.Impl.FindData(ctx, query)
}
