package fm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// NerdFontsSource fetches release archives from the Nerd Fonts repository
type NerdFontsSource struct {
	client      *http.Client
	releaseURL  string
	downloadURL string
}

func NewNerdFontsSource() *NerdFontsSource {
	return &NerdFontsSource{
		client:      defaultClient,
		releaseURL:  "https://api.github.com/repos/ryanoasis/nerd-fonts/releases/latest",
		downloadURL: "https://github.com/ryanoasis/nerd-fonts/releases/download",
	}
}

// WithBaseURL points the source at another GitHub-compatible host.
func (s *NerdFontsSource) WithBaseURL(releaseURL, downloadURL string, client *http.Client) *NerdFontsSource {
	s.releaseURL = releaseURL
	s.downloadURL = strings.TrimRight(downloadURL, "/")
	if client != nil {
		s.client = client
	}
	return s
}

func (s *NerdFontsSource) Name() string {
	return "nerdfonts"
}

type nerdFontsRelease struct {
	TagName string `json:"tag_name"`
}

func (s *NerdFontsSource) latestVersion(ctx context.Context) (string, error) {
	var release nerdFontsRelease
	if err := getJSON(ctx, s.client, s.releaseURL, &release); err != nil {
		return "", fmt.Errorf("fetching latest release: %w", err)
	}
	if release.TagName == "" {
		return "", fmt.Errorf("latest release has no tag")
	}
	return release.TagName, nil
}

// Search has no API to call; release archives are named after the family
// with spaces removed, so the name is returned as a candidate.
func (s *NerdFontsSource) Search(_ context.Context, name string) ([]RemoteFont, error) {
	cleanName := strings.ReplaceAll(strings.TrimSpace(name), " ", "")
	if cleanName == "" {
		return nil, nil
	}
	return []RemoteFont{{
		Name:   cleanName,
		Source: s.Name(),
	}}, nil
}

func (s *NerdFontsSource) Download(ctx context.Context, font RemoteFont) (io.ReadCloser, error) {
	version, err := s.latestVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting latest version: %w", err)
	}

	downloadURL := fmt.Sprintf("%s/%s/%s.zip", s.downloadURL, version, font.Name)
	return fetch(ctx, s.client, downloadURL)
}
