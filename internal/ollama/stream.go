// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader splits a newline-delimited JSON body into lines.
type StreamReader struct {
	reader *bufio.Reader
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// ReadLine returns the next non-empty line without its trailing newline.
// A final line without a newline is still returned before io.EOF.
func (s *StreamReader) ReadLine() ([]byte, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// =============================================================================
// GENERATE STREAM
// =============================================================================

// GenerateStream iterates the chunks of a streaming /api/generate call.
//
//	for stream.Next() {
//	    chunk := stream.Current()
//	}
//	if err := stream.Err(); err != nil { ... }
type GenerateStream struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *StreamReader
	cur    StreamChunk
	err    error
	done   bool
}

func newGenerateStream(ctx context.Context, body io.ReadCloser) *GenerateStream {
	return &GenerateStream{
		ctx:    ctx,
		body:   body,
		reader: NewStreamReader(body),
	}
}

// Next advances to the next chunk. It returns false after the final chunk,
// on error, or when the context is cancelled.
func (s *GenerateStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		if err := s.ctx.Err(); err != nil {
			s.err = transportError(s.ctx, err)
			return false
		}

		line, err := s.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.err = &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended without done"}
			} else {
				s.err = readError(s.ctx, err)
			}
			return false
		}

		var resp GenerateResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			// Skip malformed lines
			continue
		}
		if resp.Error != "" {
			s.err = &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
			return false
		}

		s.cur = chunkFrom(resp)
		if s.cur.Done {
			s.done = true
		}
		return true
	}
}

// Current returns the chunk read by the last successful Next.
func (s *GenerateStream) Current() StreamChunk {
	return s.cur
}

// Err returns the error that stopped iteration, if any.
func (s *GenerateStream) Err() error {
	return s.err
}

// Close releases the response body. Safe to call more than once.
func (s *GenerateStream) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}

func chunkFrom(resp GenerateResponse) StreamChunk {
	chunk := StreamChunk{
		Content:    resp.Response,
		Done:       resp.Done,
		DoneReason: resp.DoneReason,
		Model:      resp.Model,
	}
	if resp.Done {
		chunk.TotalDuration = time.Duration(resp.TotalDuration)
		chunk.LoadDuration = time.Duration(resp.LoadDuration)
		chunk.PromptEvalDuration = time.Duration(resp.PromptEvalDuration)
		chunk.EvalDuration = time.Duration(resp.EvalDuration)
		chunk.PromptTokens = resp.PromptEvalCount
		chunk.CompletionTokens = resp.EvalCount
	}
	return chunk
}
