package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSyntheticEditIsDeterministic(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	req := EditRequest{
		Prompt:    "replace the flooring",
		Base:      Attachment{Name: "room.png", Data: []byte("not-an-image")},
		RequestID: "run-1/stage-0",
	}
	first, err := client.EditImage(context.Background(), req)
	if err != nil {
		t.Fatalf("first edit: %v", err)
	}
	second, err := client.EditImage(context.Background(), req)
	if err != nil {
		t.Fatalf("second edit: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("identical requests produced different frames")
	}

	req.Prompt = "replace the countertop"
	third, err := client.EditImage(context.Background(), req)
	if err != nil {
		t.Fatalf("third edit: %v", err)
	}
	if bytes.Equal(first.Data, third.Data) {
		t.Fatal("different prompts produced the same frame")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(first.Data))
	if err != nil {
		t.Fatalf("decode synthetic frame: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q", format)
	}
	// Base data is not decodable, so the fallback canvas applies.
	if cfg.Width != 1024 || cfg.Height != 768 {
		t.Errorf("dimensions = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRemoteEditSendsMultipartRequest(t *testing.T) {
	payload := []byte("EDITED-FRAME")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-key" {
			t.Errorf("authorization = %q", got)
		}
		if r.URL.Path != "/images/edits" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "gpt-image-1.5" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("prompt"); got != "swap the cabinets" {
			t.Errorf("prompt = %q", got)
		}
		if got := r.FormValue("input_fidelity"); got != "high" {
			t.Errorf("input_fidelity = %q", got)
		}
		files := r.MultipartForm.File["image[]"]
		if len(files) != 2 {
			t.Fatalf("image parts = %d, want 2", len(files))
		}
		if files[0].Filename != "room.png" {
			t.Errorf("first part = %q, want base image first", files[0].Filename)
		}
		if files[1].Filename != "swatch-1.png" {
			t.Errorf("second part = %q", files[1].Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(payload) + `"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{APIKey: "secret-key", BaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	edited, err := client.EditImage(context.Background(), EditRequest{
		Prompt:        "swap the cabinets",
		InputFidelity: "high",
		Base:          Attachment{Name: "room.png", Data: []byte("base")},
		References:    []Attachment{{Name: "swatch-1.png", Data: []byte("swatch")}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !bytes.Equal(edited.Data, payload) {
		t.Errorf("data = %q", edited.Data)
	}
}

func TestRemoteEditSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"prompt rejected","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{APIKey: "secret-key", BaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.EditImage(context.Background(), EditRequest{
		Prompt: "anything",
		Base:   Attachment{Name: "room.png", Data: []byte("base")},
	})
	if err == nil {
		t.Fatal("expected error from 400 response")
	}
	if !strings.Contains(err.Error(), "prompt rejected") {
		t.Errorf("err = %v", err)
	}
}
