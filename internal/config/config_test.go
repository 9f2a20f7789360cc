package config

import "testing"

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := Config{AIProvider: "nope"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestValidate_OllamaRequiresModel(t *testing.T) {
	cfg := Config{AIProvider: "ollama", OllamaBaseURL: "http://localhost:11434"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing model")
	}
	cfg.OllamaModel = "qwen3:1.7b"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_OpenRouterRequiresAPIKey(t *testing.T) {
	cfg := Config{AIProvider: "openrouter", OpenRouterModel: "openrouter/auto"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	cfg.OpenRouterAPIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("CHAT_MAX_TOOL_ROUNDS", "")

	cfg := Load()
	if cfg.AIProvider != "ollama" {
		t.Fatalf("default provider = %q", cfg.AIProvider)
	}
	if cfg.OllamaBaseURL == "" || cfg.OllamaModel == "" {
		t.Fatalf("ollama defaults missing: %+v", cfg)
	}
	if cfg.ChatMaxToolRounds <= 0 {
		t.Fatalf("tool round cap not set")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
