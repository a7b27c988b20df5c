// Package sse frames an incremental byte stream into blank-line
// delimited server-sent-event records. Chunk boundaries carry no
// meaning: a record may arrive one byte at a time or many records may
// share a chunk, and no trailing data is ever lost.
package sse

import "strings"

// DataPrefix marks the payload field of an event frame.
const DataPrefix = "data: "

// DoneSentinel is the terminal payload after which nothing further
// should be expected from the stream.
const DoneSentinel = "[DONE]"

// Splitter accumulates bytes until it sees two consecutive newline
// bytes (an empty line), at which point the accumulated bytes form one
// frame. A lone newline is ordinary payload content and is retained.
type Splitter struct {
	buf     []byte
	prevSep bool
}

// Feed consumes one chunk and returns the frames it completed, in
// order. The separator pair itself is not part of any frame.
func (s *Splitter) Feed(p []byte) [][]byte {
	var frames [][]byte
	for _, b := range p {
		if b == '\n' && s.prevSep {
			// The first separator of the pair was retained; drop it.
			frames = append(frames, s.buf[:len(s.buf)-1])
			s.buf = nil
			s.prevSep = false
			continue
		}
		s.buf = append(s.buf, b)
		s.prevSep = b == '\n'
	}
	return frames
}

// Flush returns any residual bytes as a final frame. Called at end of
// stream so a record without a trailing blank line still gets
// delivered.
func (s *Splitter) Flush() ([]byte, bool) {
	if len(s.buf) == 0 {
		return nil, false
	}
	frame := s.buf
	s.buf = nil
	s.prevSep = false
	return frame, true
}

// DecodeText converts frame payload bytes to a string, replacing
// invalid UTF-8 sequences instead of failing. A single bad byte must
// never abort the whole stream.
func DecodeText(p []byte) string {
	return strings.ToValidUTF8(string(p), "�")
}
