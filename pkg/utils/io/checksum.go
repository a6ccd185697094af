package io

import (
	"crypto/md5"
	"hash"
	"io"
)

type ChecksumWriter interface {
	io.Writer

	// Get Checksum calcurated from bytes have been written
	Sum() []byte
}

type ChecksumReader interface {
	io.Reader

	// Get Checksum calcurated from bytes have been read
	Sum() []byte
}

type hashWriter struct {
	dest io.Writer
	h    hash.Hash
}

// NewMD5Writer wraps dest so that MD5 of every written byte is calcurated.
func NewMD5Writer(dest io.Writer) ChecksumWriter {
	return &hashWriter{dest: dest, h: md5.New()}
}

func (hw *hashWriter) Write(buf []byte) (int, error) {
	n, err := hw.dest.Write(buf)
	if 0 < n {
		hw.h.Write(buf[:n])
	}
	return n, err
}

func (hw *hashWriter) Sum() []byte {
	return hw.h.Sum(nil)
}

type hashReader struct {
	source io.Reader
	h      hash.Hash
}

// NewMD5Reader wraps source so that MD5 of every read byte is calcurated.
func NewMD5Reader(source io.Reader) ChecksumReader {
	return &hashReader{source: source, h: md5.New()}
}

func (hr *hashReader) Read(p []byte) (int, error) {
	n, err := hr.source.Read(p)
	if 0 < n {
		hr.h.Write(p[:n])
	}
	return n, err
}

func (hr *hashReader) Sum() []byte {
	return hr.h.Sum(nil)
}
