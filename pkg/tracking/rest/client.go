package rest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/data"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/api/types/tags"
	"github.com/SchuylerDH/build-ml-pipeline-for-short-term-rental-prices/pkg/tracking/profiles"
)

var ErrCannotTrustCA = errors.New("cannot trust CA certificate")

// KnitClient is a client of the Data part of knitfab API.
type KnitClient interface {
	// PostData registers a new Data from a directory.
	//
	// # Args
	//
	// - context.Context
	//
	// - string: path to directory to be registered
	//
	// - bool: when true, symlinks in source are followed and their targets are sent.
	//
	// # Returns
	//
	// - Progress[*data.Detail]: uploading progress. Its Result is metadata of created Data.
	PostData(ctx context.Context, source string, dereference bool) Progress[*data.Detail]

	// PutTagsForData sets/removes tags of a Data.
	//
	// # Returns
	//
	// - *data.Detail: metadata of updated Data
	//
	// - error
	PutTagsForData(ctx context.Context, knitId string, change tags.Change) (*data.Detail, error)

	// GetDataRaw downloads a Data as tar.gz stream and verifies its checksum.
	//
	// handler is called with the stream.
	// If handler returns an error, downloading is stopped and the error is returned.
	//
	// When the stream is read through and the checksum does not match,
	// it returns ErrChecksumUnmatch.
	GetDataRaw(ctx context.Context, knitId string, handler func(io.Reader) error) error

	// GetData downloads a Data and calls handler for each entry in it.
	GetData(ctx context.Context, knitId string, handler func(FileEntry) error) error

	// FindData finds Data having all of tags.
	FindData(ctx context.Context, query []tags.Tag) ([]data.Detail, error)
}

type client struct {
	httpclient *http.Client
	api        string
}

// NewClient creates a KnitClient for the profile.
//
// # Returns
//
// - KnitClient
//
// - error: If given profile is invalid, ErrProfileInvalid is returned.
func NewClient(prof *profiles.KnitProfile) (KnitClient, error) {
	if err := prof.Verify(); err != nil {
		return nil, err
	}
	httpclient := new(http.Client)

	if prof.Cert.CA != "" {
		hc, err := trustCa(httpclient, []string{prof.Cert.CA})
		if err != nil {
			return nil, err
		}
		httpclient = hc
	}

	return &client{
		httpclient: httpclient,
		api:        strings.TrimSuffix(prof.ApiRoot, "/"),
	}, nil
}

// build URL with path
func (c *client) apipath(path ...string) string {
	elems := []string{c.api}
	for _, p := range path {
		elems = append(elems, strings.Trim(p, "/"))
	}
	return strings.Join(elems, "/")
}

func trustCa(hc *http.Client, cacerts []string) (*http.Client, error) {
	if len(cacerts) == 0 {
		return hc, nil
	}

	if hc.Transport == nil {
		hc.Transport = http.DefaultTransport
	}

	tran, ok := hc.Transport.(*http.Transport)
	if !ok {
		return nil, ErrCannotTrustCA
	}
	tran = tran.Clone()

	tcc := tran.TLSClientConfig.Clone()
	if tcc == nil {
		tcc = &tls.Config{}
	}

	rootcas := tcc.RootCAs
	if rootcas == nil {
		rootcas = x509.NewCertPool()
		tcc.RootCAs = rootcas
	}
	for _, ca := range cacerts {
		bin, err := base64.StdEncoding.DecodeString(ca)
		if err != nil {
			return nil, errors.Join(ErrCannotTrustCA, err)
		}
		if !rootcas.AppendCertsFromPEM(bin) {
			return nil, ErrCannotTrustCA
		}
	}

	tran.TLSClientConfig = tcc
	hc.Transport = tran
	return hc, nil
}
