package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stream(bitrate int, original bool, locale string) AudioStream {
	return AudioStream{
		URL:         "https://example.com/stream",
		BitrateKbps: bitrate,
		IsOriginal:  original,
		Locale:      locale,
	}
}

func TestSelectAudioStream_EmptyFails(t *testing.T) {
	_, err := selectAudioStream(nil, QualityBest)
	assert.ErrorIs(t, err, ErrNoAudioStreams)
}

func TestSelectAudioStream_PrefersOriginalJapanese(t *testing.T) {
	streams := []AudioStream{
		stream(256, false, "en-US"),
		stream(128, true, "ja"),
		stream(160, false, "ja"),
		stream(192, true, "en"),
	}

	got, err := selectAudioStream(streams, QualityBest)
	require.NoError(t, err)
	assert.True(t, got.IsOriginal)
	assert.Equal(t, "ja", got.Locale)
	assert.Equal(t, 128, got.BitrateKbps)
}

func TestSelectAudioStream_FallsBackToAnyOriginal(t *testing.T) {
	streams := []AudioStream{
		stream(96, false, "ja"),
		stream(128, true, "en"),
		stream(256, false, "en-US"),
	}

	got, err := selectAudioStream(streams, QualityBest)
	require.NoError(t, err)
	assert.True(t, got.IsOriginal)
	assert.Equal(t, "en", got.Locale)
}

func TestSelectAudioStream_FallsBackToJapaneseLocale(t *testing.T) {
	streams := []AudioStream{
		stream(96, false, "ja-JP"),
		stream(256, false, "en-US"),
	}

	got, err := selectAudioStream(streams, QualityBest)
	require.NoError(t, err)
	assert.Equal(t, "ja-JP", got.Locale)
}

func TestSelectAudioStream_AllStreamsTierPicksMaxBitrate(t *testing.T) {
	streams := []AudioStream{
		stream(64, false, ""),
		stream(140, false, ""),
		stream(96, false, ""),
	}

	got, err := selectAudioStream(streams, QualityBest)
	require.NoError(t, err)
	assert.Equal(t, 140, got.BitrateKbps)
}

func TestSelectAudioStream_DataSaverCapsAt96(t *testing.T) {
	streams := []AudioStream{
		stream(64, false, ""),
		stream(96, false, ""),
		stream(256, false, ""),
	}

	got, err := selectAudioStream(streams, QualityDataSaver)
	require.NoError(t, err)
	assert.Equal(t, 96, got.BitrateKbps)
}

func TestSelectAudioStream_DataSaverRelaxesTo140(t *testing.T) {
	streams := []AudioStream{
		stream(128, false, ""),
		stream(256, false, ""),
	}

	got, err := selectAudioStream(streams, QualityDataSaver)
	require.NoError(t, err)
	assert.Equal(t, 128, got.BitrateKbps)
}

func TestSelectAudioStream_DataSaverUnfilteredWhenAllAbove140(t *testing.T) {
	streams := []AudioStream{
		stream(256, false, ""),
		stream(320, false, ""),
	}

	got, err := selectAudioStream(streams, QualityDataSaver)
	require.NoError(t, err)
	assert.Equal(t, 320, got.BitrateKbps)
}

func TestSelectAudioStream_StandardCapsAt140(t *testing.T) {
	streams := []AudioStream{
		stream(140, false, ""),
		stream(256, false, ""),
	}

	got, err := selectAudioStream(streams, QualityStandard)
	require.NoError(t, err)
	assert.Equal(t, 140, got.BitrateKbps)
}

func TestSelectAudioStream_CeilingAppliesWithinWinningTierOnly(t *testing.T) {
	// The original+ja tier wins even though a lower-bitrate stream
	// exists outside it.
	streams := []AudioStream{
		stream(64, false, "en"),
		stream(256, true, "ja"),
	}

	got, err := selectAudioStream(streams, QualityDataSaver)
	require.NoError(t, err)
	assert.True(t, got.IsOriginal)
	assert.Equal(t, 256, got.BitrateKbps)
}
