package fm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteFont is a font family a Source can download into the Library.
// URL is set only for direct downloads (Source "url"); Meta carries
// source-specific identifiers such as the fontsource id.
type RemoteFont struct {
	Name   string
	Source string
	URL    string
	Meta   map[string]string
}

// Source is a remote provider of zipped font families
type Source interface {
	Name() string

	// Search returns candidate families for name, best match first
	Search(ctx context.Context, name string) ([]RemoteFont, error)

	// Download returns the zip archive for font
	Download(ctx context.Context, font RemoteFont) (io.ReadCloser, error)
}

var defaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	},
}

const userAgent = "FontActivator/1.0"

func lookupSource(sources []Source, name string) (Source, bool) {
	for _, source := range sources {
		if source.Name() == name {
			return source, true
		}
	}
	return nil, false
}

// fetch GETs url and returns the body of a 200 response.
func fetch(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// getJSON fetches url and decodes the response body into v.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	body, err := fetch(ctx, client, url)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
