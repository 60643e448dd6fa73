// Package cache keeps downloaded badge assets on disk and their processed
// forms in memory so a batch fetches each image once.
package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	gocache "github.com/patrickmn/go-cache"
	_ "golang.org/x/image/webp"
)

// ImageCache resolves asset URLs (http, https or data:) into decoded
// images and print-sized PNG bytes.
type ImageCache struct {
	dir string

	// url -> path of the original on disk
	paths *gocache.Cache
	// Key(url, w, h, dpi) -> processed PNG bytes
	data *gocache.Cache

	client *http.Client
	fileMu sync.RWMutex
}

// New creates the cache rooted at dir.
func New(dir string) (*ImageCache, error) {
	if dir == "" {
		dir = "/tmp/badge-cache"
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
	}
	return &ImageCache{
		dir:    dir,
		paths:  gocache.New(5*time.Minute, 10*time.Minute),
		data:   gocache.New(10*time.Minute, 20*time.Minute),
		client: &http.Client{Timeout: 5 * time.Second, Transport: transport},
	}, nil
}

func (c *ImageCache) Dir() string {
	return c.dir
}

func hashURL(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Key identifies a processed image of a given print size.
func Key(url string, widthMM, heightMM float64, dpi int) string {
	return fmt.Sprintf("%s_%.1f_%.1f_%d", hashURL(url), widthMM, heightMM, dpi)
}

// ============ RAW ASSETS ============

// Path returns the on-disk copy of url, downloading it on first use.
func (c *ImageCache) Path(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("empty URL")
	}
	if strings.HasPrefix(url, "data:") {
		return "", fmt.Errorf("data URLs are not stored on disk")
	}

	key := hashURL(url)
	if cached, found := c.paths.Get(key); found {
		path := cached.(string)
		if fileExists(path) {
			return path, nil
		}
	}

	ext := filepath.Ext(url)
	if ext == "" || len(ext) > 5 {
		ext = ".img"
	}
	cachePath := filepath.Join(c.dir, "images", key+ext)

	c.fileMu.RLock()
	exists := fileExists(cachePath)
	c.fileMu.RUnlock()
	if exists {
		c.paths.Set(key, cachePath, gocache.DefaultExpiration)
		return cachePath, nil
	}

	c.fileMu.Lock()
	defer c.fileMu.Unlock()

	// another goroutine may have finished the download
	if fileExists(cachePath) {
		c.paths.Set(key, cachePath, gocache.DefaultExpiration)
		return cachePath, nil
	}
	if err := c.download(url, cachePath); err != nil {
		return "", fmt.Errorf("failed to download image from %s: %w", url, err)
	}
	if !fileExists(cachePath) {
		return "", fmt.Errorf("downloaded image file is empty: %s (from %s)", cachePath, url)
	}

	c.paths.Set(key, cachePath, gocache.DefaultExpiration)
	return cachePath, nil
}

func (c *ImageCache) raw(url string) ([]byte, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeDataURL(url)
	}
	path, err := c.Path(url)
	if err != nil {
		return nil, err
	}
	c.fileMu.RLock()
	defer c.fileMu.RUnlock()
	return os.ReadFile(path)
}

// Image decodes url. The imaging decoder handles PNG, JPEG, GIF and WebP.
func (c *ImageCache) Image(url string) (image.Image, error) {
	raw, err := c.raw(url)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ============ PRINT-SIZED IMAGES ============

// PNG returns url resized to exactly widthMM × heightMM at dpi, encoded as
// 8-bit PNG.
func (c *ImageCache) PNG(url string, widthMM, heightMM float64, dpi int) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL")
	}
	key := Key(url, widthMM, heightMM, dpi)
	if cached, found := c.data.Get(key); found {
		return cached.([]byte), nil
	}

	img, err := c.Image(url)
	if err != nil {
		return nil, err
	}

	pixelWidth := int(widthMM * float64(dpi) / 25.4)
	pixelHeight := int(heightMM * float64(dpi) / 25.4)
	if pixelWidth < 1 {
		pixelWidth = 1
	}
	if pixelHeight < 1 {
		pixelHeight = 1
	}
	b := img.Bounds()
	if b.Dx() != pixelWidth || b.Dy() != pixelHeight {
		img = imaging.Resize(img, pixelWidth, pixelHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Clone(img), imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	out := buf.Bytes()
	c.data.Set(key, out, gocache.DefaultExpiration)
	return out, nil
}

// Request is one asset a render is going to need.
type Request struct {
	URL    string
	Width  float64 // mm
	Height float64 // mm
	DPI    int
}

// Preload processes requests in parallel and returns Key -> PNG bytes.
// Failed assets are left out; the renderer retries them on demand.
func (c *ImageCache) Preload(requests []Request, concurrency int) map[string][]byte {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make(map[string][]byte)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	seen := make(map[string]bool)
	for _, req := range requests {
		if req.URL == "" {
			continue
		}
		key := Key(req.URL, req.Width, req.Height, req.DPI)
		if seen[key] {
			continue
		}
		seen[key] = true

		wg.Add(1)
		go func(r Request, key string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := c.PNG(r.URL, r.Width, r.Height, r.DPI)
			if err == nil {
				mu.Lock()
				results[key] = data
				mu.Unlock()
			}
		}(req, key)
	}

	wg.Wait()
	return results
}

// ============ HELPER FUNCTIONS ============

func (c *ImageCache) download(url, destPath string) error {
	resp, err := c.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, destPath)
}

func decodeDataURL(url string) ([]byte, error) {
	comma := strings.IndexByte(url, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URL")
	}
	meta, payload := url[len("data:"):comma], url[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URLs are supported")
	}
	return base64.StdEncoding.DecodeString(payload)
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Size() > 0
}

// Clear drops every cached asset.
func (c *ImageCache) Clear() error {
	c.fileMu.Lock()
	defer c.fileMu.Unlock()
	c.paths.Flush()
	c.data.Flush()
	if err := os.RemoveAll(filepath.Join(c.dir, "images")); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(c.dir, "images"), 0755)
}

// Stats reports cache occupancy.
func (c *ImageCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"path_items":  c.paths.ItemCount(),
		"image_items": c.data.ItemCount(),
		"cache_dir":   c.dir,
	}
}
