package processor

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"image-fit-go/internal/cache"
	"image-fit-go/internal/compressor"
	"image-fit-go/internal/datauri"
	"image-fit-go/internal/providers"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Attachment part types that may carry inline image data.
const (
	TypeFile  = "file"
	TypeImage = "image"
)

// Attachment is the part of a message or tool output the processor inspects.
type Attachment struct {
	Type     string `json:"type"`
	Mime     string `json:"mime"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Result describes the outcome for a single attachment. Attachment is the
// input pointer itself whenever nothing was rewritten.
type Result struct {
	Attachment     *Attachment
	WasCompressed  bool
	Failed         bool
	CacheHit       bool
	OriginalSize   int
	CompressedSize int
	Err            error
}

// Options configures a Processor.
type Options struct {
	// Workers bounds concurrent compressions in ProcessAll.
	Workers int
}

// Processor adapts inline image attachments to destination byte ceilings.
type Processor struct {
	resolver   *providers.Resolver
	compressor compressor.Compressor
	cache      *cache.Cache
	opts       Options
	logger     *logrus.Logger
}

// NewProcessor returns a Processor. cache may be nil to disable caching.
func NewProcessor(
	resolver *providers.Resolver,
	comp compressor.Compressor,
	resultCache *cache.Cache,
	opts Options,
	logger *logrus.Logger,
) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = max(runtime.NumCPU(), 2)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Processor{
		resolver:   resolver,
		compressor: comp,
		cache:      resultCache,
		opts:       opts,
		logger:     logger,
	}
}

// IsImagePart reports whether att carries inline image data.
func IsImagePart(att *Attachment) bool {
	if att == nil {
		return false
	}
	if att.Type != TypeFile && att.Type != TypeImage {
		return false
	}
	if !strings.HasPrefix(strings.ToLower(att.Mime), "image/") {
		return false
	}
	return strings.HasPrefix(att.URL, "data:")
}

// Process fits a single attachment to the ceiling of destinationID.
// It never panics; engine failures are reported through Result.Failed.
func (p *Processor) Process(att *Attachment, destinationID, modelID string) (res Result) {
	if !IsImagePart(att) {
		return Result{Attachment: att}
	}

	destinationID = providers.NormalizeID(destinationID)
	maxSize := p.resolver.ResolveLimit(destinationID, modelID)
	targetSize := p.compressor.Options().TargetSize(maxSize)
	log := p.logger.WithFields(logrus.Fields{
		"destination": destinationID,
		"model":       modelID,
		"max_size":    maxSize,
	})

	img, err := datauri.Parse(att.URL)
	if err != nil {
		log.Warnf("Could not parse inline image: %v", err)
		return Result{Attachment: att, Failed: true, Err: err}
	}
	originalSize := img.Size()

	var key string
	if p.cache != nil {
		key = cache.Key(destinationID, maxSize, att.URL)
		if entry, ok := p.cache.Get(key); ok {
			if mime, ok := datauri.MediaType(entry.URI); ok {
				log.Debug("Using cached re-encoding")
				return Result{
					Attachment:     withPayload(att, mime, entry.URI),
					WasCompressed:  true,
					CacheHit:       true,
					OriginalSize:   originalSize,
					CompressedSize: datauri.ApproximateDecodedSize(entry.URI),
				}
			}
			log.Warn("Ignoring unreadable cached re-encoding")
		}
	}

	if originalSize <= targetSize {
		return Result{Attachment: att, OriginalSize: originalSize, CompressedSize: originalSize}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Compression panicked: %v", r)
			res = Result{
				Attachment:     att,
				Failed:         true,
				OriginalSize:   originalSize,
				CompressedSize: originalSize,
				Err:            fmt.Errorf("compression panicked: %v", r),
			}
		}
	}()

	out, err := p.compressor.Compress(img.Data, img.Mime, maxSize)
	if err != nil {
		log.Errorf("Compression failed: %v", err)
		return Result{
			Attachment:     att,
			Failed:         true,
			OriginalSize:   originalSize,
			CompressedSize: originalSize,
			Err:            err,
		}
	}

	uri := datauri.Serialize(out)
	if p.cache != nil {
		p.cache.Add(key, cache.Entry{URI: uri})
	}

	log.WithFields(logrus.Fields{
		"original_size":   originalSize,
		"compressed_size": out.Size(),
		"mime":            out.Mime,
	}).Info("Compressed image")

	return Result{
		Attachment:     withPayload(att, out.Mime, uri),
		WasCompressed:  true,
		OriginalSize:   originalSize,
		CompressedSize: out.Size(),
	}
}

// ProcessAll processes attachments concurrently and returns results in input
// order. Parts not yet started when ctx is cancelled are returned untouched.
func (p *Processor) ProcessAll(ctx context.Context, atts []*Attachment, destinationID, modelID string) []Result {
	results := make([]Result, len(atts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, att := range atts {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				results[i] = Result{Attachment: att}
				return nil
			default:
			}
			results[i] = p.Process(att, destinationID, modelID)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// withPayload returns a shallow copy of att carrying the new image.
func withPayload(att *Attachment, mime, uri string) *Attachment {
	cp := *att
	cp.Mime = mime
	cp.URL = uri
	return &cp
}
