package gemini

import "fmt"

// ModelKey is the public name callers select a model by.
type ModelKey string

const (
	ModelNanoBanana    ModelKey = "nano-banana"
	ModelNanoBananaPro ModelKey = "nano-banana-pro"

	DefaultModelKey = ModelNanoBanana
)

// models maps public keys to Gemini model identifiers.
var models = map[ModelKey]string{
	ModelNanoBanana:    "gemini-2.5-flash-image",
	ModelNanoBananaPro: "gemini-3-pro-image-preview",
}

// ResolveModel returns the Gemini model identifier for a key.
func ResolveModel(key ModelKey) (string, error) {
	id, ok := models[key]
	if !ok {
		return "", fmt.Errorf("unknown model key %q", key)
	}
	return id, nil
}

// SupportsResolution reports whether the model honors an explicit image size.
// Only the pro model does; the flash model ignores the tier.
func SupportsResolution(key ModelKey) bool {
	return key == ModelNanoBananaPro
}

// DefaultResolution returns the tier applied when the caller picks none.
func DefaultResolution(key ModelKey) string {
	if key == ModelNanoBananaPro {
		return "2K"
	}
	return ""
}

// StyledPrompt appends the optional style hint to the prompt text.
func StyledPrompt(prompt, style string) string {
	if style == "" {
		return prompt
	}
	return fmt.Sprintf("%s, %s style", prompt, style)
}
