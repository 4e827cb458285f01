package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveModel(t *testing.T) {
	id, err := ResolveModel(ModelNanoBanana)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash-image", id)

	id, err = ResolveModel(ModelNanoBananaPro)
	require.NoError(t, err)
	assert.Equal(t, "gemini-3-pro-image-preview", id)

	_, err = ResolveModel("dall-e")
	assert.Error(t, err)
}

func TestResolutionSupport(t *testing.T) {
	assert.False(t, SupportsResolution(ModelNanoBanana))
	assert.True(t, SupportsResolution(ModelNanoBananaPro))

	assert.Equal(t, "", DefaultResolution(ModelNanoBanana))
	assert.Equal(t, "2K", DefaultResolution(ModelNanoBananaPro))
}

func TestStyledPrompt(t *testing.T) {
	assert.Equal(t, "a red fox", StyledPrompt("a red fox", ""))
	assert.Equal(t, "a red fox, watercolor style", StyledPrompt("a red fox", "watercolor"))
}

func TestExtractImage_NoData(t *testing.T) {
	_, _, err := extractImage(nil)
	assert.ErrorIs(t, err, ErrNoImageData)
}
