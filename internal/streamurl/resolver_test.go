package streamurl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utadex/internal/extractor"
)

type fakeSource struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeSource) ResolveBestAudioStream(ctx context.Context, videoID string, pref extractor.Quality) (*extractor.AudioStreamDetails, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &extractor.AudioStreamDetails{
		URL:         "https://stream.example/" + videoID,
		BitrateKbps: 128,
		MimeType:    "audio/webm",
	}, nil
}

func TestResolve_Memoizes(t *testing.T) {
	src := &fakeSource{}
	r := NewResolver(src, extractor.QualityBest, 10, time.Minute)

	ctx := context.Background()
	u1, err := r.Resolve(ctx, "vid1")
	require.NoError(t, err)
	u2, err := r.Resolve(ctx, "vid1")
	require.NoError(t, err)

	assert.Equal(t, "https://stream.example/vid1", u1)
	assert.Equal(t, u1, u2)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestResolve_CollapsesConcurrentCalls(t *testing.T) {
	src := &fakeSource{delay: 50 * time.Millisecond}
	r := NewResolver(src, extractor.QualityBest, 10, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), "vid1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestResolve_ErrorNotCached(t *testing.T) {
	src := &fakeSource{err: errors.New("age restricted")}
	r := NewResolver(src, extractor.QualityBest, 10, time.Minute)

	_, err := r.Resolve(context.Background(), "vid1")
	require.Error(t, err)

	src.err = nil
	u, err := r.Resolve(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, "https://stream.example/vid1", u)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestResolve_InvalidateForcesRefetch(t *testing.T) {
	src := &fakeSource{}
	r := NewResolver(src, extractor.QualityBest, 10, time.Minute)

	_, err := r.Resolve(context.Background(), "vid1")
	require.NoError(t, err)

	r.Invalidate("vid1")
	_, err = r.Resolve(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestResolve_TTLExpiry(t *testing.T) {
	src := &fakeSource{}
	r := NewResolver(src, extractor.QualityBest, 10, 30*time.Millisecond)

	_, err := r.Resolve(context.Background(), "vid1")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = r.Resolve(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}
