package synthesis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"ai-mockup-studio/internal/gemini"
)

type fakeProvider struct {
	images    [][]byte
	imagesErr error
	edit      gemini.Response
	editErr   error
	block     chan struct{}

	sceneCalls int
	editCalls  int
	lastInputs []gemini.ImageInput
	lastPrompt string
}

func (f *fakeProvider) GenerateImages(_ context.Context, prompt, _ string, _ int) ([][]byte, error) {
	f.sceneCalls++
	f.lastPrompt = prompt
	if f.block != nil {
		<-f.block
	}
	return f.images, f.imagesErr
}

func (f *fakeProvider) EditImage(_ context.Context, images []gemini.ImageInput, instruction string) (gemini.Response, error) {
	f.editCalls++
	f.lastInputs = images
	f.lastPrompt = instruction
	if f.block != nil {
		<-f.block
	}
	return f.edit, f.editErr
}

func newTestClient(p Provider) *Client {
	return New(Options{Provider: p, Timeout: time.Second, Tracer: noop.NewTracerProvider().Tracer("test")})
}

var png = Image{Data: []byte("png"), MimeType: "image/png"}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want Kind
	}{
		{"Error 400: API key not valid. Please pass a valid API key.", KindAuth},
		{"rpc error: PERMISSION_DENIED", KindAuth},
		{"You exceeded your current quota", KindQuota},
		{"googleapi: Error 429: Too Many Requests", KindQuota},
		{"RESOURCE_EXHAUSTED", KindQuota},
		{"request blocked by safety settings", KindSafety},
		{"PROHIBITED_CONTENT", KindSafety},
		{"context deadline exceeded", KindTimeout},
		{"read tcp: i/o timeout", KindTimeout},
		{"internal server error", KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(errors.New(tt.msg)), tt.msg)
	}

	assert.Equal(t, KindTimeout, Classify(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindRefusal, Classify(&Error{Kind: KindRefusal}))
}

func TestClassifyRuleOrder(t *testing.T) {
	// Auth patterns are checked before quota ones.
	assert.Equal(t, KindAuth, Classify(errors.New("permission denied: billing account disabled")))
	// Quota before safety.
	assert.Equal(t, KindQuota, Classify(errors.New("429: blocked")))
}

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("mockup: %w", &Error{Kind: KindQuota, Op: opScenes, Err: errors.New("quota")})

	assert.ErrorIs(t, err, ErrQuota)
	assert.NotErrorIs(t, err, ErrAuth)
	assert.Equal(t, KindQuota, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "quota_exceeded")
}

func TestSynthesizeScenes(t *testing.T) {
	p := &fakeProvider{images: [][]byte{[]byte("a"), []byte("b"), []byte("c")}}
	c := newTestClient(p)

	images, err := c.SynthesizeScenes(context.Background(), "prompt", "1:1", 3)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "image/png", images[0].MimeType)
	assert.Equal(t, 1, p.sceneCalls)
}

func TestSynthesizeScenesClassifiesProviderErrors(t *testing.T) {
	c := newTestClient(&fakeProvider{imagesErr: errors.New("You exceeded your current quota")})
	_, err := c.SynthesizeScenes(context.Background(), "prompt", "1:1", 3)
	assert.ErrorIs(t, err, ErrQuota)

	c = newTestClient(&fakeProvider{imagesErr: errors.New("images blocked by safety filter")})
	_, err = c.SynthesizeScenes(context.Background(), "prompt", "1:1", 3)
	assert.ErrorIs(t, err, ErrSafety)
}

func TestSynthesizeScenesEmptyList(t *testing.T) {
	c := newTestClient(&fakeProvider{images: nil})

	_, err := c.SynthesizeScenes(context.Background(), "prompt", "1:1", 3)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestValidationSkipsProvider(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(p)

	_, err := c.SynthesizeScenes(context.Background(), " ", "1:1", 3)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.SynthesizeScenes(context.Background(), "prompt", "1:1", 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.CompositeDesign(context.Background(), Image{}, png, "edit")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.ApplyStyle(context.Background(), png, "")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, p.sceneCalls)
	assert.Zero(t, p.editCalls)
}

func TestCompositeDesignSendsSceneThenAsset(t *testing.T) {
	p := &fakeProvider{edit: gemini.Response{Images: []gemini.ImageInput{{Data: []byte("out"), MimeType: "image/png"}}}}
	c := newTestClient(p)

	asset := Image{Data: []byte("design"), MimeType: "image/webp"}
	img, err := c.CompositeDesign(context.Background(), png, asset, "replace the magenta")
	require.NoError(t, err)
	assert.Equal(t, []byte("out"), img.Data)

	require.Len(t, p.lastInputs, 2)
	assert.Equal(t, png.Data, p.lastInputs[0].Data)
	assert.Equal(t, "image/webp", p.lastInputs[1].MimeType)
	assert.Equal(t, "replace the magenta", p.lastPrompt)
}

func TestEditTextOnlyIsRefusal(t *testing.T) {
	c := newTestClient(&fakeProvider{edit: gemini.Response{Text: "I can't place that design."}})

	_, err := c.CompositeDesign(context.Background(), png, png, "edit")
	require.ErrorIs(t, err, ErrRefusal)
	text, ok := RefusalText(err)
	require.True(t, ok)
	assert.Equal(t, "I can't place that design.", text)
}

func TestRefusalTextIsNotTrimmed(t *testing.T) {
	raw := "\nI can't place that design.\n  Please try another scene. "
	c := newTestClient(&fakeProvider{edit: gemini.Response{Text: raw}})

	_, err := c.CompositeDesign(context.Background(), png, png, "edit")
	text, ok := RefusalText(err)
	require.True(t, ok)
	assert.Equal(t, raw, text)
}

func TestWhitespaceOnlyTextIsEmptyResponse(t *testing.T) {
	c := newTestClient(&fakeProvider{edit: gemini.Response{Text: " \n\t"}})

	_, err := c.ApplyStyle(context.Background(), png, "style")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEditNothingIsEmptyResponse(t *testing.T) {
	c := newTestClient(&fakeProvider{})

	_, err := c.ApplyStyle(context.Background(), png, "style")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEditBlockedIsSafety(t *testing.T) {
	c := newTestClient(&fakeProvider{edit: gemini.Response{Blocked: "SAFETY", Text: "sorry"}})

	_, err := c.ApplyStyle(context.Background(), png, "style")
	assert.ErrorIs(t, err, ErrSafety)
}

func TestBoundedWaitOnHungProvider(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	c := New(Options{
		Provider: &fakeProvider{block: block},
		Timeout:  50 * time.Millisecond,
		Tracer:   noop.NewTracerProvider().Tracer("test"),
	})

	start := time.Now()
	_, err := c.SynthesizeScenes(context.Background(), "prompt", "1:1", 1)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}
