// Package transform rewrites inline image parts inside JSON message
// documents. Any object whose type is "file" or "image" and that carries
// string mime and url fields is a candidate, however deeply it is nested
// (message parts, tool results, tool attachments).
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"image-fit-go/internal/processor"
	"image-fit-go/internal/statistics"

	"github.com/sirupsen/logrus"
)

// Report summarizes a single document transform.
type Report struct {
	Candidates int
	Rewritten  int
	Failed     int
	Results    []processor.Result
}

// Transformer walks documents and fits their image parts to a destination.
type Transformer struct {
	proc   *processor.Processor
	stats  *statistics.Statistics
	logger *logrus.Logger
	indent string
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithStatistics records every processed part into stats.
func WithStatistics(stats *statistics.Statistics) Option {
	return func(t *Transformer) { t.stats = stats }
}

// WithIndent pretty-prints rewritten documents.
func WithIndent(indent string) Option {
	return func(t *Transformer) { t.indent = indent }
}

// NewTransformer returns a Transformer backed by proc.
func NewTransformer(proc *processor.Processor, logger *logrus.Logger, opts ...Option) *Transformer {
	if logger == nil {
		logger = logrus.New()
	}
	t := &Transformer{proc: proc, logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// candidate is an object in the document together with the attachment view
// handed to the processor.
type candidate struct {
	node map[string]any
	att  *processor.Attachment
}

// Transform reads a JSON document from r, rewrites its image parts and writes
// the result to w. A document with nothing to rewrite is copied verbatim.
func (t *Transformer) Transform(ctx context.Context, r io.Reader, w io.Writer, destinationID, modelID string) (*Report, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	report := t.TransformValue(ctx, doc, destinationID, modelID)
	if report.Rewritten == 0 {
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("failed to write document: %w", err)
		}
		return report, nil
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if t.indent != "" {
		enc.SetIndent("", t.indent)
	}
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return report, nil
}

// TransformValue rewrites image parts of an already decoded document in place.
// Numbers should be decoded as json.Number so re-encoding keeps them intact.
func (t *Transformer) TransformValue(ctx context.Context, doc any, destinationID, modelID string) *Report {
	var cands []candidate
	collect(doc, &cands)

	report := &Report{Candidates: len(cands)}
	if len(cands) == 0 {
		return report
	}

	atts := make([]*processor.Attachment, len(cands))
	for i, c := range cands {
		atts[i] = c.att
	}

	t.logger.WithFields(logrus.Fields{
		"destination": destinationID,
		"model":       modelID,
		"parts":       len(cands),
	}).Debug("Processing image parts")

	report.Results = t.proc.ProcessAll(ctx, atts, destinationID, modelID)
	for i, res := range report.Results {
		if t.stats != nil {
			t.stats.IncrementTotalParts()
			t.stats.RecordResult(destinationID, res)
		}
		if res.Failed {
			report.Failed++
		}
		if res.Attachment == nil || res.Attachment == atts[i] {
			continue
		}
		cands[i].node["mime"] = res.Attachment.Mime
		cands[i].node["url"] = res.Attachment.URL
		report.Rewritten++
	}

	return report
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("failed to decode document: trailing data after top-level value")
	}
	return doc, nil
}

// collect appends every image part candidate reachable from v.
func collect(v any, out *[]candidate) {
	switch node := v.(type) {
	case map[string]any:
		if att, ok := attachmentOf(node); ok {
			*out = append(*out, candidate{node: node, att: att})
			return
		}
		for _, child := range node {
			collect(child, out)
		}
	case []any:
		for _, child := range node {
			collect(child, out)
		}
	}
}

func attachmentOf(node map[string]any) (*processor.Attachment, bool) {
	typ, _ := node["type"].(string)
	mime, okMime := node["mime"].(string)
	url, okURL := node["url"].(string)
	if !okMime || !okURL {
		return nil, false
	}
	att := &processor.Attachment{Type: typ, Mime: mime, URL: url}
	if !processor.IsImagePart(att) {
		return nil, false
	}
	att.Filename, _ = node["filename"].(string)
	return att, true
}
