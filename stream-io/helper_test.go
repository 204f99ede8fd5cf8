package streamio

import (
	"bytes"
	"io"
)

// chunkSource hands out data in fixed-size chunks, then io.EOF.
type chunkSource struct {
	data  []byte
	chunk int
	reads int
}

func newChunkSource(data []byte, chunk int) *chunkSource {
	return &chunkSource{data: data, chunk: chunk}
}

func (s *chunkSource) Read(p []byte) (int, error) {
	s.reads++
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	n := s.chunk
	if n > len(p) {
		n = len(p)
	}
	if n > len(s.data) {
		n = len(s.data)
	}
	copy(p, s.data[:n])
	s.data = s.data[n:]
	return n, nil
}

// chunkSink accepts at most chunk bytes per Write and records every call.
type chunkSink struct {
	bytes.Buffer
	chunk  int
	writes []int
	closed bool
}

func (s *chunkSink) Write(p []byte) (int, error) {
	n := len(p)
	if s.chunk > 0 && n > s.chunk {
		n = s.chunk
	}
	s.writes = append(s.writes, n)
	return s.Buffer.Write(p[:n])
}

func (s *chunkSink) Close() error {
	s.closed = true
	return nil
}

// failSink accepts budget bytes, then fails.
type failSink struct {
	bytes.Buffer
	budget int
	err    error
}

func (s *failSink) Write(p []byte) (int, error) {
	if s.budget <= 0 {
		return 0, s.err
	}
	n := len(p)
	if n > s.budget {
		n = s.budget
	}
	s.budget -= n
	s.Buffer.Write(p[:n]) // nolint
	return n, nil
}

type stallSink struct {
	writes int
}

func (s *stallSink) Write(p []byte) (int, error) {
	s.writes++
	return 0, nil
}

type stallSource struct {
	reads int
}

func (s *stallSource) Read(p []byte) (int, error) {
	s.reads++
	return 0, nil
}
