package main

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

const DEFAULT_CACHE_NUM_COUNTERS = 1024

// referenceCache holds decoded reference images keyed by path. A nil
// *referenceCache decodes from disk on every call.
type referenceCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func newReferenceCache(maxBytes int, ttl time.Duration) (*referenceCache, error) {
	if maxBytes <= 0 {
		return nil, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: DEFAULT_CACHE_NUM_COUNTERS,
		MaxCost:     int64(maxBytes),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &referenceCache{cache: cache, ttl: ttl}, nil
}

// load returns the image at path as NRGBA. Entries are keyed on the file's
// modification time and size as well, so a replaced file is decoded again.
// Cached images are shared and must not be modified.
func (rc *referenceCache) load(path string, info os.FileInfo) (*image.NRGBA, error) {
	key := cacheKey(path, info)
	if rc != nil {
		if cached, found := rc.cache.Get(key); found {
			return cached.(*image.NRGBA), nil
		}
	}

	img, err := gg.LoadPNG(path)
	if err != nil {
		return nil, err
	}
	nrgba := toNRGBA(img)

	if rc != nil {
		rc.cache.SetWithTTL(key, nrgba, int64(len(nrgba.Pix)), rc.ttl)
	}
	return nrgba, nil
}

func cacheKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
}

func (rc *referenceCache) wait() {
	if rc != nil {
		rc.cache.Wait()
	}
}

func (rc *referenceCache) close() {
	if rc != nil {
		rc.cache.Close()
	}
}

// toNRGBA copies img into a zero-origin non-premultiplied RGBA image.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return dst
}
