package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"roomviz/internal/infra"
)

// Options controls how the image-edit client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the provider's image-edit endpoint. With no API
// key configured it renders deterministic synthetic frames instead of calling
// out, which keeps the full pipeline (claiming, staging, publication)
// exercisable in local and CI environments.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Attachment is one image sent with an edit call. The base room photo is
// always first; swatch references follow in prompt order.
type Attachment struct {
	Name string
	Data []byte
}

// EditRequest carries one stage's full provider input.
type EditRequest struct {
	Prompt        string
	Model         string
	InputFidelity string
	Base          Attachment
	References    []Attachment
	RequestID     string
}

// EditedImage is the normalized provider response.
type EditedImage struct {
	Data   []byte
	Format string
}

type imagesEditResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type imagesErrorResponse struct {
	Error struct {
		Message string `json:"message,omitempty"`
		Type    string `json:"type,omitempty"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults. Callers may provide a nil
// HTTP client; a reusable one with a generation-sized timeout is created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 180 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := opts.Model
	if model == "" {
		model = "gpt-image-1.5"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured default model identifier.
func (c *Client) Model() string {
	return c.model
}

// EditImage applies the prompt to the base image. Without an API key it
// returns a deterministic synthetic frame; with one, a remote failure is
// surfaced to the caller so the stage retry budget governs what happens next.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*EditedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.apiKey == "" {
		return c.syntheticEdit(req), nil
	}

	edited, err := c.remoteEdit(ctx, req)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("request_id", req.RequestID).
			Str("model", c.resolveModel(req.Model)).
			Msg("genai: remote image edit failed")
		return nil, err
	}
	return edited, nil
}

func (c *Client) resolveModel(model string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return c.model
}

func (c *Client) remoteEdit(ctx context.Context, req EditRequest) (*EditedImage, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("model", c.resolveModel(req.Model)); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := writer.WriteField("prompt", req.Prompt); err != nil {
		return nil, fmt.Errorf("write prompt field: %w", err)
	}
	if fidelity := strings.TrimSpace(req.InputFidelity); fidelity != "" {
		if err := writer.WriteField("input_fidelity", fidelity); err != nil {
			return nil, fmt.Errorf("write input_fidelity field: %w", err)
		}
	}

	attachments := append([]Attachment{req.Base}, req.References...)
	for i, att := range attachments {
		name := att.Name
		if name == "" {
			name = fmt.Sprintf("image-%d.png", i)
		}
		part, err := writer.CreateFormFile("image[]", name)
		if err != nil {
			return nil, fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, fmt.Errorf("write image part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	endpoint := c.baseURL + "/images/edits"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("invoke images edit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr imagesErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("images edit status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return nil, fmt.Errorf("images edit status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return nil, fmt.Errorf("images edit status %d", resp.StatusCode)
	}

	var response imagesEditResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode images edit response: %w", err)
	}
	if len(response.Data) == 0 || response.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("images edit returned no image data")
	}
	blob, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.resolveModel(req.Model)).
		Int("bytes", len(blob)).
		Msg("genai: remote image edit succeeded")

	return &EditedImage{Data: blob, Format: "image/png"}, nil
}

func (c *Client) syntheticEdit(req EditRequest) *EditedImage {
	width, height := decodeImageDimensions(req.Base.Data)
	if width == 0 || height == 0 {
		width, height = 1024, 768
	}
	seed := deterministicSeed(req.Prompt, c.resolveModel(req.Model), len(req.References), req.RequestID)

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.resolveModel(req.Model)).
		Int("references", len(req.References)).
		Msg("genai: rendered synthetic edit")

	return &EditedImage{Data: renderSyntheticFrame(width, height, seed), Format: "image/png"}
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func renderSyntheticFrame(width, height int, seed string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := maxInt(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, minInt(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	r := mustParseHexByte(segment[0:2])
	g := mustParseHexByte(segment[2:4])
	b := mustParseHexByte(segment[4:6])
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
