package backdrop

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

type TextureKey string

const (
	TextureGlow    TextureKey = "glow"
	TextureStar    TextureKey = "star"
	TextureSmoke   TextureKey = "smoke"
	TextureSparkle TextureKey = "sparkle"
)

type TextureID string

type WrapMode int

const (
	WrapClamp WrapMode = iota
	WrapRepeat
	WrapMirror
)

type FilterMode int

const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// Texture is a decoded RGBA bitmap plus its sampling parameters.
type Texture struct {
	ID     TextureID
	Key    TextureKey
	Source string
	Image  *image.RGBA
	Wrap   WrapMode
	Filter FilterMode
	// Fallback is set when the bitmap was generated instead of loaded.
	Fallback bool
}

func (t *Texture) Size() (int, int) {
	if t == nil || t.Image == nil {
		return 0, 0
	}
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

// TextureSet maps texture keys to textures. It is filled once per session
// and read-only afterwards.
type TextureSet map[TextureKey]*Texture

func (s TextureSet) Get(key TextureKey) *Texture {
	return s[key]
}

// Release drops the pixel data of every texture in the set.
func (s TextureSet) Release() {
	for k, t := range s {
		if t != nil {
			t.Image = nil
		}
		delete(s, k)
	}
}

func makeTextureID() TextureID {
	return TextureID(uuid.NewString())
}

var errNoSource = errors.New("no source configured")

// Fetcher opens an asset source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (io.ReadCloser, error)
}

// SourceFetcher reads local paths and http(s) URLs.
type SourceFetcher struct {
	Client *http.Client
}

func (f SourceFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		client := f.Client
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("http status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
	return os.Open(strings.TrimPrefix(source, "file://"))
}

const (
	defaultAssetTimeout = 5 * time.Second
	maxTextureSize      = 512
)

// AtlasLoader resolves texture keys to textures, substituting a generated
// bitmap for every key that cannot be loaded.
type AtlasLoader struct {
	Sources map[TextureKey]string
	Timeout time.Duration
	Fetcher Fetcher
	Logger  Logger
}

func NewAtlasLoader(sources map[TextureKey]string, timeout time.Duration, logger Logger) *AtlasLoader {
	return &AtlasLoader{
		Sources: sources,
		Timeout: timeout,
		Fetcher: SourceFetcher{},
		Logger:  loggerOr(logger),
	}
}

// LoadAll loads every key concurrently and returns once all of them have
// settled. The result always has an entry for each key.
func (l *AtlasLoader) LoadAll(ctx context.Context, keys []TextureKey) TextureSet {
	set := make(TextureSet, len(keys))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, key := range keys {
		wg.Add(1)
		go func(key TextureKey) {
			defer wg.Done()
			tex := l.loadOrFallback(ctx, key)
			mu.Lock()
			set[key] = tex
			mu.Unlock()
		}(key)
	}
	wg.Wait()
	return set
}

func (l *AtlasLoader) loadOrFallback(ctx context.Context, key TextureKey) *Texture {
	logger := loggerOr(l.Logger)
	tex, err := l.load(ctx, key)
	if err == nil {
		logger.Debugf("texture %s loaded from %s", key, tex.Source)
		return tex
	}
	logger.Warnf("texture %s unavailable, using generated bitmap: %v", key, err)
	img, ferr := GenerateFallback(key)
	if ferr != nil {
		logger.Errorf("texture %s fallback failed: %v", key, ferr)
		img = image.NewRGBA(image.Rect(0, 0, FallbackSize, FallbackSize))
	}
	return &Texture{
		ID:       makeTextureID(),
		Key:      key,
		Source:   "generated:" + string(key),
		Image:    img,
		Wrap:     WrapClamp,
		Filter:   FilterLinear,
		Fallback: true,
	}
}

func (l *AtlasLoader) load(ctx context.Context, key TextureKey) (*Texture, error) {
	source, ok := l.Sources[key]
	if !ok || source == "" {
		return nil, errNoSource
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultAssetTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		img *image.RGBA
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, err := l.fetchDecode(ctx, source)
		done <- result{img, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("loading %s: %w", source, r.err)
		}
		return &Texture{
			ID:     makeTextureID(),
			Key:    key,
			Source: source,
			Image:  r.img,
			Wrap:   WrapClamp,
			Filter: FilterLinear,
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("loading %s: %w", source, ctx.Err())
	}
}

func (l *AtlasLoader) fetchDecode(ctx context.Context, source string) (*image.RGBA, error) {
	fetcher := l.Fetcher
	if fetcher == nil {
		fetcher = SourceFetcher{}
	}
	rc, err := fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return decodeTexture(rc)
}

// decodeTexture decodes any registered format and normalises the result to
// a square power-of-two RGBA bitmap no larger than maxTextureSize.
func decodeTexture(r io.Reader) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("decoding image: empty bitmap")
	}

	side := nextPowerOfTwo(max(b.Dx(), b.Dy()))
	if side > maxTextureSize {
		side = maxTextureSize
	}
	if b.Dx() == side && b.Dy() == side {
		if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
			return rgba, nil
		}
		dst := image.NewRGBA(image.Rect(0, 0, side, side))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

func nextPowerOfTwo(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
