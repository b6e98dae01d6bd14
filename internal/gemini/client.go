package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

const (
	defaultSceneModel = "imagen-4.0-generate-001"
	defaultEditModel  = "gemini-2.5-flash-image-preview"

	// maxImagesPerRequest is the most images a single scene request may ask for.
	maxImagesPerRequest = 4
)

type Options struct {
	APIKey      string
	BaseURL     string
	APIVersion  string
	SceneModel  string
	EditModel   string
	Parallelism int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// models is the slice of genai.Models the client calls.
type models interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	models      models
	sceneModel  string
	editModel   string
	parallelism int
	logger      *slog.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini: api key is empty")
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
			APIVersion: strings.TrimSpace(opts.APIVersion),
		},
	}
	if cfg.HTTPOptions.BaseURL != "" {
		cfg.HTTPOptions.BaseURL += "/"
	}

	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newWithModels(gc.Models, opts), nil
}

func newWithModels(m models, opts Options) *Client {
	sceneModel := strings.TrimSpace(opts.SceneModel)
	if sceneModel == "" {
		sceneModel = defaultSceneModel
	}
	editModel := strings.TrimSpace(opts.EditModel)
	if editModel == "" {
		editModel = defaultEditModel
	}
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		models:      m,
		sceneModel:  sceneModel,
		editModel:   editModel,
		parallelism: parallelism,
		logger:      logger,
	}
}

// GenerateImages asks the scene model for count images. Requests above the
// per-call limit are split into batches that run concurrently; the result
// keeps batch order.
func (c *Client) GenerateImages(ctx context.Context, prompt, aspectRatio string, count int) ([][]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt is empty")
	}
	if count < 1 {
		return nil, fmt.Errorf("image count must be positive, got %d", count)
	}

	batches := splitBatches(count, maxImagesPerRequest)
	results := make([][][]byte, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, n := range batches {
		g.Go(func() error {
			images, err := c.generateBatch(gctx, prompt, aspectRatio, n)
			if err != nil {
				return err
			}
			results[i] = images
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]byte, 0, count)
	for _, batch := range results {
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Client) generateBatch(ctx context.Context, prompt, aspectRatio string, n int) ([][]byte, error) {
	resp, err := c.models.GenerateImages(ctx, c.sceneModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(n),
		AspectRatio:    aspectRatio,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, fmt.Errorf("generate images: %w", err)
	}
	if resp == nil {
		return nil, nil
	}

	var images [][]byte
	var filtered []string
	for _, gi := range resp.GeneratedImages {
		if gi == nil {
			continue
		}
		if gi.Image != nil && len(gi.Image.ImageBytes) > 0 {
			images = append(images, gi.Image.ImageBytes)
			continue
		}
		if gi.RAIFilteredReason != "" {
			filtered = append(filtered, gi.RAIFilteredReason)
		}
	}

	c.logger.Debug("scene batch done", "model", c.sceneModel, "requested", n, "received", len(images), "filtered", len(filtered))

	if len(images) == 0 && len(filtered) > 0 {
		return nil, fmt.Errorf("images blocked by safety filter: %s", strings.Join(filtered, "; "))
	}
	return images, nil
}

// EditImage sends the images followed by the instruction to the edit model
// and returns both the image and text parts of the first candidate.
func (c *Client) EditImage(ctx context.Context, images []ImageInput, instruction string) (Response, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return Response{}, errors.New("instruction is empty")
	}
	if len(images) == 0 {
		return Response{}, errors.New("no images to edit")
	}

	parts := make([]*genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(instruction))

	resp, err := c.models.GenerateContent(ctx, c.editModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return Response{}, fmt.Errorf("generate content: %w", err)
	}

	out := extractParts(resp)
	c.logger.Debug("edit done", "model", c.editModel, "inputs", len(images), "images", len(out.Images), "text_len", len(out.Text))
	return out, nil
}

func extractParts(resp *genai.GenerateContentResponse) Response {
	var out Response
	if resp == nil {
		return out
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		out.Blocked = string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}

	cand := resp.Candidates[0]
	if reason := string(cand.FinishReason); out.Blocked == "" && isSafetyReason(reason) {
		out.Blocked = reason
	}
	if cand.Content == nil {
		return out
	}

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil {
			continue
		}
		if p.Text != "" && !p.Thought {
			text.WriteString(p.Text)
		}
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			out.Images = append(out.Images, ImageInput{Data: p.InlineData.Data, MimeType: mime})
		}
	}
	out.Text = text.String()
	return out
}

func isSafetyReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "safety") ||
		strings.Contains(r, "prohibited") ||
		strings.Contains(r, "blocklist") ||
		strings.Contains(r, "spii")
}

func splitBatches(count, size int) []int {
	var out []int
	for count > 0 {
		n := min(count, size)
		out = append(out, n)
		count -= n
	}
	return out
}
