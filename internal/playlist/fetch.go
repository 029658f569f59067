package playlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/codedswitch/studio/internal/audio"
)

// ErrFetch wraps failures to retrieve an item's bytes.
var ErrFetch = errors.New("cannot fetch audio")

// Fetcher retrieves the raw bytes of an item.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (io.ReadCloser, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	return f(ctx, url)
}

// HTTPFetcher downloads http(s) URLs and opens anything else as a local
// file.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: item has no URL", ErrFetch)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		file, err := os.Open(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return file, nil
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: %s", ErrFetch, url, resp.Status)
	}
	return resp.Body, nil
}

// UserMessage turns a playback error into text for the end user.
func UserMessage(err error) string {
	var de *audio.DecodeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &de):
		return fmt.Sprintf("Could not play %q: the file is damaged or in an unsupported format. Try a different format (WAV or MP3).", de.Name)
	case errors.Is(err, audio.ErrAutoplayBlocked):
		return "Audio is blocked until you enable it. Try again after pressing play."
	case errors.Is(err, audio.ErrUnsupportedAudio):
		return "Audio playback is not available on this system."
	case errors.Is(err, ErrFetch):
		return "Could not download the song. Check the address and try again."
	default:
		return err.Error()
	}
}
