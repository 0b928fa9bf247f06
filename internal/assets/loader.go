package assets

import (
	"context"
	"image"
	_ "image/png" // Support PNG format
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // Support WebP format
)

const (
	MaxConcurrentFetches = 3
	FetchTimeout         = 5 * time.Second
)

// extensions are tried in order for every key.
var extensions = []string{".png", ".webp"}

// Loader fetches asset files from an http(s) base URL or a local directory.
type Loader struct {
	base   string
	remote bool
	client *http.Client
	sem    chan struct{} // Semaphore for concurrent fetches
}

// NewLoader creates a loader for base. Files are named <Name>.png (or .webp) under base.
func NewLoader(base string) *Loader {
	remote := strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
	if remote && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Loader{
		base:   base,
		remote: remote,
		client: &http.Client{
			Timeout: FetchTimeout,
		},
		sem: make(chan struct{}, MaxConcurrentFetches),
	}
}

// Preload loads every enumerated key into table.
// Individual failures are logged and leave the key unresolved; the render
// pipeline reports them as draw errors. Returns the number of images loaded,
// or an error only when ctx is cancelled.
func Preload(ctx context.Context, base string, table *Table) (int, error) {
	return NewLoader(base).LoadAll(ctx, table)
}

// LoadAll loads every key into table with bounded concurrency.
func (l *Loader) LoadAll(ctx context.Context, table *Table) (int, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		loaded int
	)

	for _, key := range AllKeys() {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return loaded, errors.Wrap(err, "preload assets")
		}

		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return loaded, errors.Wrap(ctx.Err(), "preload assets")
		}

		wg.Add(1)
		go func(key Key) {
			defer wg.Done()
			defer func() { <-l.sem }()

			img, err := l.Load(ctx, key)
			if err != nil {
				log.Warn().Err(err).Msgf("⚠️ Asset %s unavailable", key)
				return
			}
			table.Set(key, img)

			mu.Lock()
			loaded++
			mu.Unlock()
		}(key)
	}

	wg.Wait()
	log.Info().Msgf("🖼️ Preloaded %d/%d assets from %s", loaded, len(AllKeys()), l.base)
	return loaded, nil
}

// Load fetches and decodes a single key.
func (l *Loader) Load(ctx context.Context, key Key) (image.Image, error) {
	if !key.Valid() {
		return nil, errors.Wrapf(ErrUnknownKey, "%s", key)
	}

	var lastErr error
	for _, ext := range extensions {
		img, err := l.loadFile(ctx, key.Name()+ext)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (l *Loader) loadFile(ctx context.Context, name string) (image.Image, error) {
	var (
		r   io.ReadCloser
		err error
	)
	if l.remote {
		r, err = l.fetch(ctx, l.base+name)
	} else {
		r, err = os.Open(filepath.Join(l.base, name))
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	return img, nil
}

func (l *Loader) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", url)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("fetch %s returned %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
