package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:    HTTPConfig{Port: 8080},
		Catalog: CatalogConfig{Path: "data/materials.json"},
		Embedding: EmbeddingConfig{
			APIKey: "test-key",
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingCatalogPath(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing catalog path")
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding api key")
	}
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.SemanticWeight = -0.1
	cfg.Retrieval.KeywordWeight = 0.4
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestValidate_AllWeightsZeroAfterDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()
	if cfg.Retrieval.SemanticWeight != 0.6 || cfg.Retrieval.KeywordWeight != 0.4 {
		t.Errorf("default weights = %f/%f, want 0.6/0.4",
			cfg.Retrieval.SemanticWeight, cfg.Retrieval.KeywordWeight)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.Retrieval.TopK != 5 {
		t.Errorf("top_k = %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.CandidateFactor != 1 {
		t.Errorf("candidate_factor = %d, want 1", cfg.Retrieval.CandidateFactor)
	}
	if cfg.Index.HNSWM != 16 {
		t.Errorf("hnsw_m = %d, want 16", cfg.Index.HNSWM)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("model = %q", cfg.Embedding.Model)
	}
	if cfg.Answer.APIKey != "test-key" {
		t.Errorf("answer api_key not inherited from embedding: %q", cfg.Answer.APIKey)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("HELIOS_TEST_KEY", "secret")
	defer os.Unsetenv("HELIOS_TEST_KEY")

	in := []byte("api_key: ${HELIOS_TEST_KEY}\nmodel: ${HELIOS_TEST_MODEL:-fallback}\n")
	out := string(expandEnvVars(in))

	if out != "api_key: secret\nmodel: fallback\n" {
		t.Errorf("expanded = %q", out)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `http:
  port: 9090
catalog:
  path: data/materials.json
embedding:
  api_key: ${HELIOS_TEST_LOAD_KEY:-file-key}
retrieval:
  top_k: 7
`
	if err := os.WriteFile(filepath.Join(cfgDir, "test.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Embedding.APIKey != "file-key" {
		t.Errorf("api_key = %q", cfg.Embedding.APIKey)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("top_k = %d, want 7", cfg.Retrieval.TopK)
	}
}
