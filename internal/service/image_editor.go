package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/model"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrNoImageReturned means the model call succeeded at the transport level
// but produced no image part.
var ErrNoImageReturned = errors.New("no image returned from model")

// ImageEditor is the opaque external image-editing call: portrait in,
// edited portrait out.
type ImageEditor interface {
	Edit(ctx context.Context, img model.InlineImage, params model.StyleParams) (*model.InlineImage, error)
}

type geminiEditor struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewGeminiEditor creates an ImageEditor backed by the Gemini REST API.
// requestTimeout bounds the whole call; the debit taken before invoking it
// is not reversed on timeout.
func NewGeminiEditor(apiKey, modelName string, requestTimeout time.Duration) ImageEditor {
	return &geminiEditor{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: geminiBaseURL,
		apiKey:  apiKey,
		model:   modelName,
	}
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	Text       string            `json:"text,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *geminiEditor) Edit(ctx context.Context, img model.InlineImage, params model.StyleParams) (*model.InlineImage, error) {
	prompt := fmt.Sprintf(`You are a luxury hair extension editor for Diosa Studio Yorkville.
Edit the provided portrait photo to apply premium hair extensions.
Preset: %s
Shade: %s
Length: %s
Requirements:
- seamless blend at root
- natural density and believable texture
- keep face identity and skin tone consistent
- professional salon lighting, daylight-proof
Return ONLY the edited image.`, params.Preset, params.Shade, params.Length)

	reqBody := generateContentRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: img.MimeType,
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				}},
				{Text: prompt},
			},
		}},
	}
	bodyJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call image model: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var parsed generateContentResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
			return nil, fmt.Errorf("image model returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("image model returned %d", resp.StatusCode)
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode model image payload: %w", err)
			}
			mimeType := part.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &model.InlineImage{Data: data, MimeType: mimeType}, nil
		}
	}
	return nil, ErrNoImageReturned
}
