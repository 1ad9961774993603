package session

import (
	"fmt"
	"os"
	"strconv"
)

// Settings keys, matching the browser client's localStorage layout.
const (
	keyModel        = "openai_model"
	keySystemPrompt = "system_prompt"
	keyAPIKey       = "openai_api_key"
	keyTemperature  = "temperature"
	keyTopP         = "top_p"
)

// Settings are the per-user chat parameters persisted alongside the
// sessions. Each value is independently stored and defaulted.
type Settings struct {
	Model        string
	SystemPrompt string
	APIKey       string
	Temperature  float64
	TopP         float64
}

// DefaultSettings mirrors the defaults of the original client.
func DefaultSettings() Settings {
	return Settings{
		Model:        "gpt-4o-mini",
		SystemPrompt: "You are a helpful AI assistant.",
		Temperature:  0.7,
		TopP:         1,
	}
}

// LoadSettings reads settings from kv, filling absent or unparsable
// values from defaults.
func LoadSettings(kv KV, defaults Settings) Settings {
	s := defaults
	if v, ok := kv.Get(keyModel); ok && v != "" {
		s.Model = v
	}
	if v, ok := kv.Get(keySystemPrompt); ok && v != "" {
		s.SystemPrompt = v
	}
	if v, ok := kv.Get(keyAPIKey); ok {
		s.APIKey = v
	}
	if v, ok := kv.Get(keyTemperature); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.Temperature = f
		}
	}
	if v, ok := kv.Get(keyTopP); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.TopP = f
		}
	}
	return s
}

// SaveSettings writes all settings back through the port. Write failures
// are swallowed like every other persistence error.
func SaveSettings(kv KV, s Settings) {
	pairs := []struct{ key, value string }{
		{keyModel, s.Model},
		{keySystemPrompt, s.SystemPrompt},
		{keyAPIKey, s.APIKey},
		{keyTemperature, strconv.FormatFloat(s.Temperature, 'g', -1, 64)},
		{keyTopP, strconv.FormatFloat(s.TopP, 'g', -1, 64)},
	}
	for _, p := range pairs {
		if err := kv.Set(p.key, p.value); err != nil {
			fmt.Fprintf(os.Stderr, "warning: settings persist failed: %v\n", err)
			return
		}
	}
}
