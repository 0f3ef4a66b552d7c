package config

import "testing"

func TestLoad(t *testing.T) {
	env := map[string]string{
		"SOURCE_BUCKETS":        "bucket-a, bucket-b",
		"AUTO_WEBP":             "Yes",
		"REWRITE_MATCH_PATTERN": "/(filters-)/gm",
		"REWRITE_SUBSTITUTION":  "filters:",
		"ENABLE_SIGNATURE":      "No",
		"CORS_ENABLED":          "Yes",
		"CORS_ORIGIN":           "*",
		"STORAGE_BACKEND":       "MinIO",
		"STORAGE_USE_SSL":       "false",
	}
	cfg := Load(func(k string) string { return env[k] })

	if cfg.SourceBuckets != "bucket-a, bucket-b" {
		t.Errorf("SourceBuckets = %q", cfg.SourceBuckets)
	}
	if !cfg.AutoWebP || !cfg.CORSEnabled || cfg.EnableSignature {
		t.Errorf("flags = autoWebP %v cors %v signature %v", cfg.AutoWebP, cfg.CORSEnabled, cfg.EnableSignature)
	}
	if !cfg.HasRewrite() {
		t.Error("HasRewrite() = false, want true")
	}
	if cfg.Storage.Backend != BackendMinio || cfg.Storage.UseSSL {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load(func(string) string { return "" })
	if cfg.Storage.Backend != BackendS3 {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendS3)
	}
	if !cfg.Storage.UseSSL {
		t.Error("Storage.UseSSL = false, want true")
	}
	if cfg.HasRewrite() {
		t.Error("HasRewrite() = true with nothing set")
	}
	if cfg.AutoWebP {
		t.Error("AutoWebP = true with nothing set")
	}
}

func TestHasRewriteNeedsBoth(t *testing.T) {
	if (Config{RewriteMatchPattern: "/a/"}).HasRewrite() {
		t.Error("HasRewrite() = true with only a pattern")
	}
	if (Config{RewriteSubstitution: "b"}).HasRewrite() {
		t.Error("HasRewrite() = true with only a substitution")
	}
}
