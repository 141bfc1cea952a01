package backdrop

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "tex.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

type blockingFetcher struct{}

func (blockingFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingFetcher struct{}

func (failingFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	return nil, errors.New("connection refused")
}

func TestAtlasLoader_AllFailuresFallBack(t *testing.T) {
	sources := map[TextureKey]string{
		TextureGlow:    "http://assets.invalid/glow.png",
		TextureStar:    "http://assets.invalid/star.png",
		TextureSmoke:   "http://assets.invalid/smoke.png",
		TextureSparkle: "http://assets.invalid/sparkle.png",
	}
	l := NewAtlasLoader(sources, time.Second, NewNopLogger())
	l.Fetcher = failingFetcher{}

	set := l.LoadAll(context.Background(), TextureKeys())
	require.Len(t, set, 4)
	for _, key := range TextureKeys() {
		tex := set.Get(key)
		require.NotNil(t, tex, key)
		assert.True(t, tex.Fallback, key)
		assert.Equal(t, "generated:"+string(key), tex.Source)
		w, h := tex.Size()
		assert.Equal(t, FallbackSize, w)
		assert.Equal(t, FallbackSize, h)
		assert.NotEmpty(t, tex.ID)
	}
}

func TestAtlasLoader_MissingSourceFallsBack(t *testing.T) {
	l := NewAtlasLoader(nil, time.Second, NewNopLogger())
	set := l.LoadAll(context.Background(), []TextureKey{TextureSmoke})
	require.NotNil(t, set.Get(TextureSmoke))
	assert.True(t, set.Get(TextureSmoke).Fallback)
}

func TestAtlasLoader_LocalFileIsNormalised(t *testing.T) {
	path := writePNG(t, 100, 60)
	l := NewAtlasLoader(map[TextureKey]string{TextureGlow: path}, time.Second, NewNopLogger())

	set := l.LoadAll(context.Background(), []TextureKey{TextureGlow, TextureStar})
	glow := set.Get(TextureGlow)
	require.NotNil(t, glow)
	assert.False(t, glow.Fallback)
	assert.Equal(t, path, glow.Source)
	w, h := glow.Size()
	assert.Equal(t, 128, w, "sides round up to a power of two")
	assert.Equal(t, 128, h)

	assert.True(t, set.Get(TextureStar).Fallback, "one failure does not affect the others")
}

func TestAtlasLoader_FileURLPrefix(t *testing.T) {
	path := writePNG(t, 16, 16)
	l := NewAtlasLoader(map[TextureKey]string{TextureStar: "file://" + path}, time.Second, NewNopLogger())
	tex := l.LoadAll(context.Background(), []TextureKey{TextureStar}).Get(TextureStar)
	assert.False(t, tex.Fallback)
	w, _ := tex.Size()
	assert.Equal(t, 16, w)
}

func TestAtlasLoader_TimeoutFallsBack(t *testing.T) {
	l := NewAtlasLoader(map[TextureKey]string{TextureSparkle: "http://slow.invalid/s.png"}, 50*time.Millisecond, NewNopLogger())
	l.Fetcher = blockingFetcher{}

	start := time.Now()
	set := l.LoadAll(context.Background(), []TextureKey{TextureSparkle})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, set.Get(TextureSparkle).Fallback)
}

func TestAtlasLoader_HTTP(t *testing.T) {
	body, err := os.ReadFile(writePNG(t, 600, 300))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/glow.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	l := NewAtlasLoader(map[TextureKey]string{
		TextureGlow: srv.URL + "/glow.png",
		TextureStar: srv.URL + "/missing.png",
	}, time.Second, NewNopLogger())
	set := l.LoadAll(context.Background(), []TextureKey{TextureGlow, TextureStar})

	glow := set.Get(TextureGlow)
	assert.False(t, glow.Fallback)
	w, h := glow.Size()
	assert.Equal(t, maxTextureSize, w, "oversized bitmaps are capped")
	assert.Equal(t, maxTextureSize, h)
	assert.True(t, set.Get(TextureStar).Fallback, "404 is a load failure")
}

func TestDecodeTexture_Garbage(t *testing.T) {
	_, err := decodeTexture(io.LimitReader(zeroReader{}, 64))
	assert.ErrorContains(t, err, "decoding image")
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestTextureSet_Release(t *testing.T) {
	tex := &Texture{Key: TextureGlow, Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}
	set := TextureSet{TextureGlow: tex}
	set.Release()
	assert.Empty(t, set)
	assert.Nil(t, tex.Image)
	w, h := tex.Size()
	assert.Zero(t, w+h)
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, 1, nextPowerOfTwo(1))
	assert.Equal(t, 64, nextPowerOfTwo(64))
	assert.Equal(t, 128, nextPowerOfTwo(65))
}
