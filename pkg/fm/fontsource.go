package fm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// FontSourceAPI provides access to fontsource.org
type FontSourceAPI struct {
	client      *http.Client
	apiURL      string
	downloadURL string
}

func NewFontSourceAPI() *FontSourceAPI {
	return &FontSourceAPI{
		client:      defaultClient,
		apiURL:      "https://api.fontsource.org/v1/fonts",
		downloadURL: "https://r2.fontsource.org/fonts",
	}
}

// WithBaseURL points the source at another fontsource-compatible host.
func (s *FontSourceAPI) WithBaseURL(apiURL, downloadURL string, client *http.Client) *FontSourceAPI {
	s.apiURL = strings.TrimRight(apiURL, "/")
	s.downloadURL = strings.TrimRight(downloadURL, "/")
	if client != nil {
		s.client = client
	}
	return s
}

func (s *FontSourceAPI) Name() string {
	return "fontsource"
}

type fontSourceFont struct {
	ID     string `json:"id"`
	Family string `json:"family"`
}

func (s *FontSourceAPI) Search(ctx context.Context, name string) ([]RemoteFont, error) {
	reqURL := fmt.Sprintf("%s?family=%s", s.apiURL, url.QueryEscape(name))

	var fonts []fontSourceFont
	if err := getJSON(ctx, s.client, reqURL, &fonts); err != nil {
		return nil, fmt.Errorf("searching fonts: %w", err)
	}

	results := make([]RemoteFont, 0, len(fonts))
	for _, f := range fonts {
		results = append(results, RemoteFont{
			Name:   f.Family,
			Source: s.Name(),
			Meta:   map[string]string{"id": f.ID},
		})
	}
	return results, nil
}

func (s *FontSourceAPI) Download(ctx context.Context, font RemoteFont) (io.ReadCloser, error) {
	fontID := font.Meta["id"]
	if fontID == "" {
		fonts, err := s.Search(ctx, font.Name)
		if err != nil {
			return nil, fmt.Errorf("searching for font ID: %w", err)
		}
		if len(fonts) == 0 {
			return nil, fmt.Errorf("font not found: %s", font.Name)
		}
		fontID = fonts[0].Meta["id"]
	}

	downloadURL := fmt.Sprintf("%s/%s@latest/download.zip", s.downloadURL, url.PathEscape(fontID))
	return fetch(ctx, s.client, downloadURL)
}
