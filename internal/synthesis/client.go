package synthesis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"ai-mockup-studio/internal/gemini"
)

const (
	opScenes    = "synthesize_scenes"
	opComposite = "composite_design"
	opStyle     = "apply_style"

	defaultTimeout = 120 * time.Second
)

// Image is an opaque encoded image.
type Image struct {
	Data     []byte
	MimeType string
}

// Provider is the raw model backend. *gemini.Client implements it.
type Provider interface {
	GenerateImages(ctx context.Context, prompt, aspectRatio string, count int) ([][]byte, error)
	EditImage(ctx context.Context, images []gemini.ImageInput, instruction string) (gemini.Response, error)
}

type Options struct {
	Provider Provider
	// Timeout bounds every call, including providers that ignore their context.
	Timeout time.Duration
	// MinInterval spaces consecutive provider calls. Zero disables pacing.
	MinInterval time.Duration
	Logger      *slog.Logger
	Tracer      trace.Tracer
}

type Client struct {
	provider Provider
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
	tracer   trace.Tracer
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("ai-mockup-studio/internal/synthesis")
	}

	return &Client{
		provider: opts.Provider,
		timeout:  timeout,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		tracer:   tracer,
	}
}

// SynthesizeScenes generates count scene variations for prompt.
func (c *Client) SynthesizeScenes(ctx context.Context, prompt, aspectRatio string, count int) ([]Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, Validationf(opScenes, "prompt is empty")
	}
	if count < 1 {
		return nil, Validationf(opScenes, "variation count must be at least 1, got %d", count)
	}

	ctx, span := c.tracer.Start(ctx, opScenes, trace.WithAttributes(
		attribute.String("mockup.aspect_ratio", aspectRatio),
		attribute.Int("mockup.count", count),
	))
	defer span.End()

	raw, err := do(ctx, c, opScenes, func(ctx context.Context) ([][]byte, error) {
		return c.provider.GenerateImages(ctx, prompt, aspectRatio, count)
	})
	if err != nil {
		return nil, c.fail(span, err)
	}

	images := make([]Image, 0, len(raw))
	for _, data := range raw {
		if len(data) == 0 {
			continue
		}
		images = append(images, Image{Data: data, MimeType: "image/png"})
	}
	if len(images) == 0 {
		return nil, c.fail(span, &Error{Kind: KindEmptyResponse, Op: opScenes})
	}

	span.SetAttributes(attribute.Int("mockup.received", len(images)))
	return images, nil
}

// CompositeDesign replaces the scene's placeholder with the asset.
func (c *Client) CompositeDesign(ctx context.Context, scene, asset Image, editPrompt string) (Image, error) {
	if len(scene.Data) == 0 {
		return Image{}, Validationf(opComposite, "scene image is empty")
	}
	if len(asset.Data) == 0 {
		return Image{}, Validationf(opComposite, "design asset is empty")
	}
	if strings.TrimSpace(editPrompt) == "" {
		return Image{}, Validationf(opComposite, "edit instruction is empty")
	}

	ctx, span := c.tracer.Start(ctx, opComposite, trace.WithAttributes(
		attribute.String("mockup.asset_mime", asset.MimeType),
		attribute.Int("mockup.asset_bytes", len(asset.Data)),
	))
	defer span.End()

	img, err := c.edit(ctx, opComposite, []gemini.ImageInput{toInput(scene), toInput(asset)}, editPrompt)
	if err != nil {
		return Image{}, c.fail(span, err)
	}
	return img, nil
}

// ApplyStyle runs a single post-processing transform over artifact.
func (c *Client) ApplyStyle(ctx context.Context, artifact Image, stylePrompt string) (Image, error) {
	if len(artifact.Data) == 0 {
		return Image{}, Validationf(opStyle, "image is empty")
	}
	if strings.TrimSpace(stylePrompt) == "" {
		return Image{}, Validationf(opStyle, "style instruction is empty")
	}

	ctx, span := c.tracer.Start(ctx, opStyle)
	defer span.End()

	img, err := c.edit(ctx, opStyle, []gemini.ImageInput{toInput(artifact)}, stylePrompt)
	if err != nil {
		return Image{}, c.fail(span, err)
	}
	return img, nil
}

func (c *Client) edit(ctx context.Context, op string, inputs []gemini.ImageInput, instruction string) (Image, error) {
	resp, err := do(ctx, c, op, func(ctx context.Context) (gemini.Response, error) {
		return c.provider.EditImage(ctx, inputs, instruction)
	})
	if err != nil {
		return Image{}, err
	}

	switch {
	case len(resp.Images) > 0:
		img := resp.Images[0]
		mime := img.MimeType
		if mime == "" {
			mime = "image/png"
		}
		return Image{Data: img.Data, MimeType: mime}, nil
	case resp.Blocked != "":
		return Image{}, &Error{Kind: KindSafety, Op: op, Text: "blocked: " + resp.Blocked}
	case strings.TrimSpace(resp.Text) != "":
		return Image{}, &Error{Kind: KindRefusal, Op: op, Text: resp.Text}
	default:
		return Image{}, &Error{Kind: KindEmptyResponse, Op: op}
	}
}

type result[T any] struct {
	val T
	err error
}

// do paces, bounds and classifies a single provider round-trip. The
// provider runs in its own goroutine so a call that ignores ctx still
// returns once the deadline passes.
func do[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if c.provider == nil {
		return zero, &Error{Kind: KindUnknown, Op: op, Err: errors.New("provider is not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return zero, c.contextErr(ctx, op, err)
	}

	start := time.Now()
	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			err := wrap(op, r.err)
			c.logger.Warn("provider call failed", "op", op, "kind", KindOf(err).String(), "duration", time.Since(start), "error", r.err)
			return zero, err
		}
		c.logger.Info("provider call done", "op", op, "duration", time.Since(start))
		return r.val, nil
	case <-ctx.Done():
		err := c.contextErr(ctx, op, ctx.Err())
		c.logger.Warn("provider call abandoned", "op", op, "kind", KindOf(err).String(), "duration", time.Since(start))
		return zero, err
	}
}

func (c *Client) contextErr(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	// rate.Limiter reports a wait that would outlast the deadline without
	// wrapping DeadlineExceeded.
	if _, ok := ctx.Deadline(); ok && ctx.Err() == nil && strings.Contains(err.Error(), "exceed context deadline") {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, KindOf(err).String())
	span.SetAttributes(attribute.String("mockup.error_kind", KindOf(err).String()))
	return err
}

func toInput(img Image) gemini.ImageInput {
	mime := img.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return gemini.ImageInput{Data: img.Data, MimeType: mime}
}
