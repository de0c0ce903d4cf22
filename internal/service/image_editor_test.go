package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeminiEditor(baseURL string) *geminiEditor {
	return &geminiEditor{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		apiKey:  "test-key",
		model:   "gemini-2.5-flash-image",
	}
}

func TestGeminiEditorReturnsInlineImage(t *testing.T) {
	edited := []byte("edited-image-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash-image:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.NotEmpty(t, req.Contents[0].Parts)
		assert.NotNil(t, req.Contents[0].Parts[0].InlineData)

		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{
						{"text": "Here is your edit."},
						{"inlineData": map[string]string{
							"mimeType": "image/png",
							"data":     base64.StdEncoding.EncodeToString(edited),
						}},
					},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	editor := newTestGeminiEditor(srv.URL)
	img, err := editor.Edit(context.Background(), model.InlineImage{Data: []byte("in"), MimeType: "image/jpeg"}, model.StyleParams{Preset: "clip-in", Shade: "jet black", Length: "18in"})
	require.NoError(t, err)
	assert.Equal(t, edited, img.Data)
	assert.Equal(t, "image/png", img.MimeType)
}

func TestGeminiEditorNoImageInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": "I cannot edit this image."}},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	editor := newTestGeminiEditor(srv.URL)
	_, err := editor.Edit(context.Background(), model.InlineImage{Data: []byte("in"), MimeType: "image/jpeg"}, model.StyleParams{})
	require.ErrorIs(t, err, ErrNoImageReturned)
}

func TestGeminiEditorSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		})
	}))
	defer srv.Close()

	editor := newTestGeminiEditor(srv.URL)
	_, err := editor.Edit(context.Background(), model.InlineImage{Data: []byte("in"), MimeType: "image/jpeg"}, model.StyleParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
