package extractor

import (
	"errors"
	"strings"
)

// Quality is the user's audio quality preference
type Quality string

const (
	QualityDataSaver Quality = "saver"
	QualityStandard  Quality = "standard"
	QualityBest      Quality = "best"
)

// AudioStream is one audio-only stream candidate for a video
type AudioStream struct {
	URL         string
	BitrateKbps int
	MimeType    string
	// IsOriginal marks the original-language audio track on videos
	// with dubbed alternates.
	IsOriginal bool
	// Locale is the track's language tag, e.g. "ja" or "en-US".
	// Empty when the video has a single audio track.
	Locale string

	// position in the source format list
	idx int
}

var (
	// ErrNoAudioStreams means the video exposed no audio-only streams
	ErrNoAudioStreams = errors.New("extractor: no audio streams available")
	// ErrNoStreamURL means the selected stream carried no retrievable URL
	ErrNoStreamURL = errors.New("extractor: selected stream has no url")
)

func isJapanese(locale string) bool {
	return strings.HasPrefix(strings.ToLower(locale), "ja")
}

// selectAudioStream picks the stream to play. Candidates are ranked in
// four tiers: original-language Japanese tracks, then any original
// track, then any Japanese track, then everything. Within the first
// non-empty tier a bitrate ceiling derived from the quality preference
// is applied, and the highest-bitrate survivor wins.
func selectAudioStream(streams []AudioStream, pref Quality) (*AudioStream, error) {
	if len(streams) == 0 {
		return nil, ErrNoAudioStreams
	}

	tiers := []func(s AudioStream) bool{
		func(s AudioStream) bool { return s.IsOriginal && isJapanese(s.Locale) },
		func(s AudioStream) bool { return s.IsOriginal },
		func(s AudioStream) bool { return isJapanese(s.Locale) },
		func(s AudioStream) bool { return true },
	}

	var pool []AudioStream
	for _, match := range tiers {
		for _, s := range streams {
			if match(s) {
				pool = append(pool, s)
			}
		}
		if len(pool) > 0 {
			break
		}
	}

	pool = applyBitrateCeiling(pool, pref)

	best := pool[0]
	for _, s := range pool[1:] {
		if s.BitrateKbps > best.BitrateKbps {
			best = s
		}
	}
	return &best, nil
}

// applyBitrateCeiling filters the pool to the preference's preferred
// ceiling, relaxing stepwise when a ceiling leaves nothing
func applyBitrateCeiling(pool []AudioStream, pref Quality) []AudioStream {
	var ceilings []int
	switch pref {
	case QualityDataSaver:
		ceilings = []int{96, 140}
	case QualityStandard:
		ceilings = []int{140}
	default:
		return pool
	}

	for _, ceiling := range ceilings {
		var kept []AudioStream
		for _, s := range pool {
			if s.BitrateKbps <= ceiling {
				kept = append(kept, s)
			}
		}
		if len(kept) > 0 {
			return kept
		}
	}
	return pool
}
