package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fpang/image-handler/internal/request"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--env-file", t.TempDir()+"/missing.env"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestEncodeCommand(t *testing.T) {
	out := execute(t, "encode", "--bucket", "images", "--key", "photo.jpg", "--edits", `{"resize":{"width":100}}`, "--format", "webp")

	req, err := request.DecodeRequest(request.Event{Path: strings.TrimSpace(out)})
	if err != nil {
		t.Fatalf("DecodeRequest(%q): %v", out, err)
	}
	if req.Bucket == nil || *req.Bucket != "images" || req.Key != "photo.jpg" || req.OutputFormat != "webp" {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(string(req.Edits), `"width":100`) {
		t.Errorf("edits = %s", req.Edits)
	}
}

func TestTranslateCommand(t *testing.T) {
	out := execute(t, "translate", "/fit-in/200x100/filters:grayscale()/photo.jpg")

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	resize, ok := got["resize"].(map[string]any)
	if !ok {
		t.Fatalf("resize missing from %s", out)
	}
	if resize["width"] != float64(200) || resize["height"] != float64(100) || resize["fit"] != "inside" {
		t.Errorf("resize = %v", resize)
	}
	if got["grayscale"] != true {
		t.Errorf("grayscale = %v", got["grayscale"])
	}
}
