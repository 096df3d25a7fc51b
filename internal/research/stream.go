package research

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/models"
)

const maxLineSize = 1 << 20

// ChunkReader pulls JSON chunks out of a vendor event stream. It strips
// "data:" framing, skips blank lines, SSE comments and the [DONE] sentinel,
// and drops lines that are not valid JSON.
type ChunkReader struct {
	sc  *bufio.Scanner
	log logrus.FieldLogger
}

func NewChunkReader(r io.Reader, log logrus.FieldLogger) *ChunkReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &ChunkReader{sc: sc, log: log}
}

// Next returns the next chunk as compact JSON, or io.EOF at the end of the stream.
func (c *ChunkReader) Next() (json.RawMessage, error) {
	for c.sc.Scan() {
		line := strings.TrimSpace(c.sc.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			line = strings.TrimSpace(rest)
		}
		if line == "[DONE]" {
			continue
		}

		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(line)); err != nil {
			c.log.WithError(err).WithField("line", truncate(line, 200)).Warn("dropping unparsable stream chunk")
			continue
		}
		return buf.Bytes(), nil
	}
	if err := c.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Reframe copies upstream to w as newline-delimited JSON, flushing after each
// chunk when w supports it. It returns the number of chunks written.
func Reframe(w io.Writer, upstream io.Reader, log logrus.FieldLogger) (int, error) {
	flusher, _ := w.(http.Flusher)
	cr := NewChunkReader(upstream, log)
	n := 0
	for {
		chunk, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if _, err := w.Write(append(chunk, '\n')); err != nil {
			return n, err
		}
		n++
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Streamer opens a completion stream that yields NDJSON chunks.
type Streamer interface {
	Stream(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error)
}

// VendorStreamer opens the raw vendor event stream for a model.
type VendorStreamer interface {
	Stream(ctx context.Context, model string, messages []models.ChatMessage) (io.ReadCloser, error)
}

// NDJSONStreamer adapts a vendor stream into the NDJSON the proxy route
// emits, so in-process callers see exactly what HTTP clients see.
type NDJSONStreamer struct {
	Vendor VendorStreamer
	Model  string
	Log    logrus.FieldLogger
}

func (s NDJSONStreamer) Stream(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	upstream, err := s.Vendor.Stream(ctx, s.Model, messages)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	go func() {
		defer upstream.Close()
		_, err := Reframe(pw, upstream, s.Log)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
