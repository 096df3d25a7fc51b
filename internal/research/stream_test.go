package research

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/notsodumb/backend/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

const vendorStream = `: keep-alive

data: {"choices":[{"delta":{"reasoning_content":"think"}}]}

data: {"choices": [ {"delta": {"content": "Hel"}} ]}
data: not json at all
data: {"choices":[{"delta":{"content":"lo"}}]}

data: [DONE]
`

func TestChunkReader(t *testing.T) {
	log, hook := test.NewNullLogger()
	cr := NewChunkReader(strings.NewReader(vendorStream), log)

	var got []string
	for {
		chunk, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, string(chunk))
	}

	assert.Equal(t, []string{
		`{"choices":[{"delta":{"reasoning_content":"think"}}]}`,
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
	}, got)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestReframeWritesOneObjectPerLine(t *testing.T) {
	var out bytes.Buffer
	n, err := Reframe(&out, strings.NewReader(vendorStream), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "{"), l)
	}
}

func TestReframeAcceptsBareJSONLines(t *testing.T) {
	var out bytes.Buffer
	n, err := Reframe(&out, strings.NewReader("{\"a\":1}\n{\"b\":2}\n"), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", out.String())
}

type fakeVendor struct {
	body  string
	err   error
	model string
	msgs  []models.ChatMessage
}

func (f *fakeVendor) Stream(_ context.Context, model string, msgs []models.ChatMessage) (io.ReadCloser, error) {
	f.model, f.msgs = model, msgs
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestNDJSONStreamer(t *testing.T) {
	vendor := &fakeVendor{body: vendorStream}
	s := NDJSONStreamer{Vendor: vendor, Model: "o3-mini", Log: quietLogger()}

	body, err := s.Stream(context.Background(), []models.ChatMessage{{Role: "user", Content: "q"}})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(raw), "\n"))
	assert.Equal(t, "o3-mini", vendor.model)
}

func TestNDJSONStreamerUpstreamError(t *testing.T) {
	s := NDJSONStreamer{Vendor: &fakeVendor{err: errors.New("down")}, Log: quietLogger()}
	_, err := s.Stream(context.Background(), nil)
	assert.Error(t, err)
}
