package transform

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"image-fit-go/internal/compressor"
	"image-fit-go/internal/datauri"
	"image-fit-go/internal/processor"
	"image-fit-go/internal/providers"
	"image-fit-go/internal/statistics"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halvingCompressor returns the first half of the payload as PNG.
type halvingCompressor struct{}

func (halvingCompressor) Compress(data []byte, _ string, _ int) (*datauri.EncodedImage, error) {
	return &datauri.EncodedImage{Data: data[:len(data)/2], Mime: "image/png"}, nil
}

func (halvingCompressor) Options() compressor.Options {
	return compressor.DefaultOptions()
}

func newTestTransformer(t *testing.T, opts ...Option) *Transformer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	resolver := providers.NewResolver(map[string]int{"tiny": 100}, nil, nil)
	proc := processor.NewProcessor(resolver, halvingCompressor{}, nil, processor.Options{Workers: 2}, logger)
	return NewTransformer(proc, logger, opts...)
}

func dataURI(mime string, size int) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, size))
}

func TestTransform_RewritesNestedParts(t *testing.T) {
	big := dataURI("image/gif", 400)
	small := dataURI("image/png", 20)
	doc := `{
  "messages": [
    {"role": "user", "parts": [
      {"type": "text", "text": "look", "score": 1.50},
      {"type": "file", "mime": "image/gif", "url": "` + big + `", "filename": "a.gif"}
    ]},
    {"role": "tool", "state": {"output": "done", "attachments": [
      {"type": "image", "mime": "image/png", "url": "` + small + `"},
      {"type": "file", "mime": "application/pdf", "url": "data:application/pdf;base64,AAAA"}
    ]}}
  ],
  "big_number": 12345678901234567890
}`

	stats := statistics.NewStatistics()
	tr := newTestTransformer(t, WithStatistics(stats))

	var out bytes.Buffer
	report, err := tr.Transform(context.Background(), strings.NewReader(doc), &out, "tiny", "")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.Rewritten)
	assert.Zero(t, report.Failed)

	var got map[string]any
	dec := json.NewDecoder(&out)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&got))

	msgs := got["messages"].([]any)
	parts := msgs[0].(map[string]any)["parts"].([]any)
	text := parts[0].(map[string]any)
	assert.Equal(t, json.Number("1.50"), text["score"])

	img := parts[1].(map[string]any)
	assert.Equal(t, "image/png", img["mime"])
	assert.Equal(t, "a.gif", img["filename"])
	assert.Equal(t, dataURI("image/png", 200), img["url"])

	atts := msgs[1].(map[string]any)["state"].(map[string]any)["attachments"].([]any)
	assert.Equal(t, small, atts[0].(map[string]any)["url"])
	assert.Equal(t, "data:application/pdf;base64,AAAA", atts[1].(map[string]any)["url"])

	assert.Equal(t, json.Number("12345678901234567890"), got["big_number"])

	assert.Equal(t, int64(2), stats.TotalParts)
	assert.Equal(t, int64(1), stats.PartsCompressed)
	assert.Equal(t, int64(1), stats.PartsUnchanged)
}

func TestTransform_NoChangesCopiesVerbatim(t *testing.T) {
	doc := "{\"b\": 2,   \"a\": [1.0, \"x\"]}\n"
	tr := newTestTransformer(t)

	var out bytes.Buffer
	report, err := tr.Transform(context.Background(), strings.NewReader(doc), &out, "tiny", "")
	require.NoError(t, err)

	assert.Zero(t, report.Candidates)
	assert.Equal(t, doc, out.String())
}

func TestTransform_TopLevelArray(t *testing.T) {
	doc := `[{"type":"image","mime":"image/jpeg","url":"` + dataURI("image/jpeg", 300) + `"}]`
	tr := newTestTransformer(t, WithIndent("  "))

	var out bytes.Buffer
	report, err := tr.Transform(context.Background(), strings.NewReader(doc), &out, "tiny", "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rewritten)
	assert.Contains(t, out.String(), "\n  {")

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "image/png", got[0]["mime"])
}

func TestTransform_FailedPartLeftInPlace(t *testing.T) {
	doc := `{"type":"file","mime":"image/png","url":"data:image/png;base64,!!!"}`
	tr := newTestTransformer(t)

	var out bytes.Buffer
	report, err := tr.Transform(context.Background(), strings.NewReader(doc), &out, "tiny", "")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Rewritten)
	assert.Equal(t, doc, out.String())
}

func TestTransform_InvalidJSON(t *testing.T) {
	tr := newTestTransformer(t)

	_, err := tr.Transform(context.Background(), strings.NewReader(`{"a":`), &bytes.Buffer{}, "tiny", "")
	assert.Error(t, err)

	_, err = tr.Transform(context.Background(), strings.NewReader(`{} {}`), &bytes.Buffer{}, "tiny", "")
	assert.ErrorContains(t, err, "trailing data")
}
