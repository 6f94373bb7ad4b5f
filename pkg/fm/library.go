package fm

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyImported is returned when a font family is already in the library.
var ErrAlreadyImported = errors.New("already imported")

// Library is an app-private directory of fonts downloaded from remote
// sources. Each family lives in its own subdirectory. Imported fonts are
// inactive until passed to Engine.Activate.
type Library struct {
	dir     string
	sources []Source
	client  *http.Client
	logger  *zap.Logger
}

func NewLibrary(dir string, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{
		dir:    dir,
		client: defaultClient,
		logger: logger,
	}
}

// WithHTTPClient sets the client used for direct URL imports.
func (l *Library) WithHTTPClient(client *http.Client) *Library {
	if client != nil {
		l.client = client
	}
	return l
}

// Dir returns the library root.
func (l *Library) Dir() string {
	return l.dir
}

// RegisterSource adds a new source to search for fonts
func (l *Library) RegisterSource(source Source) error {
	if source == nil {
		return fmt.Errorf("cannot register nil source")
	}
	if _, ok := lookupSource(l.sources, source.Name()); ok {
		return fmt.Errorf("source %q is already registered", source.Name())
	}
	l.sources = append(l.sources, source)
	return nil
}

// ParseFontSpec parses a font specification line into a RemoteFont.
// It returns nil for blank lines and comments.
func ParseFontSpec(line string) (*RemoteFont, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
		u, err := url.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		return &RemoteFont{
			Source: "url",
			URL:    line,
			Name:   fontNameFromURL(u),
		}, nil
	}

	name, source, _ := strings.Cut(line, "@")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("invalid font spec %q: missing name", line)
	}
	return &RemoteFont{
		Name:   name,
		Source: strings.TrimSpace(source),
	}, nil
}

func fontNameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	for _, ext := range []string{".zip", ".ttf", ".otf", ".woff2", ".woff"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// Import downloads the font named by spec ("Name", "Name@source" or a URL)
// and extracts it into the library. It returns the paths of the extracted
// font files.
func (l *Library) Import(ctx context.Context, spec string) ([]string, error) {
	font, err := ParseFontSpec(spec)
	if err != nil {
		return nil, err
	}
	if font == nil {
		return nil, fmt.Errorf("empty font spec")
	}
	if l.IsImported(font.Name) {
		return nil, fmt.Errorf("font %q is %w", font.Name, ErrAlreadyImported)
	}

	if font.Source == "url" {
		data, err := fetch(ctx, l.client, font.URL)
		if err != nil {
			return nil, err
		}
		defer data.Close()
		return l.install(*font, data)
	}

	if font.Source != "" {
		source, ok := lookupSource(l.sources, font.Source)
		if !ok {
			return nil, fmt.Errorf("source %q not found", font.Source)
		}
		return l.importFromSource(ctx, font.Name, source)
	}

	var errs []error
	for _, source := range l.sources {
		paths, err := l.importFromSource(ctx, font.Name, source)
		if err == nil {
			return paths, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no font sources registered")
	}
	return nil, fmt.Errorf("font %q not found in any source: %w", font.Name, errors.Join(errs...))
}

func (l *Library) importFromSource(ctx context.Context, name string, source Source) ([]string, error) {
	fonts, err := source.Search(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("searching in %s: %w", source.Name(), err)
	}
	if len(fonts) == 0 {
		return nil, fmt.Errorf("font not found in %s", source.Name())
	}

	data, err := source.Download(ctx, fonts[0])
	if err != nil {
		return nil, fmt.Errorf("downloading from %s: %w", source.Name(), err)
	}
	defer data.Close()

	// Store under the requested name so IsImported matches what the user typed.
	font := fonts[0]
	font.Name = name
	return l.install(font, data)
}

// ImportFromConfig imports one font spec per line; blank lines and #
// comments are skipped. Fonts already in the library are not errors.
func (l *Library) ImportFromConfig(ctx context.Context, reader io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(reader)
	var (
		imported []string
		errs     []error
	)

	for scanner.Scan() {
		font, err := ParseFontSpec(scanner.Text())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if font == nil {
			continue
		}

		paths, err := l.Import(ctx, strings.TrimSpace(scanner.Text()))
		if errors.Is(err, ErrAlreadyImported) {
			l.logger.Info("font already imported", zap.String("font", font.Name))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("importing %s: %w", font.Name, err))
			continue
		}
		imported = append(imported, paths...)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("reading config: %w", err))
	}

	if len(errs) > 0 {
		return imported, fmt.Errorf("encountered errors during import: %w", errors.Join(errs...))
	}
	return imported, nil
}

// List returns every font file in the library.
func (l *Library) List() ([]FontDescriptor, error) {
	seq, err := ScanTree(l.dir, OriginImported)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return Collect(seq), nil
}

// IsImported reports whether the family directory for name holds any font.
func (l *Library) IsImported(name string) bool {
	familyDir := filepath.Join(l.dir, sanitizeFontName(name))
	seq, err := Scan(familyDir, OriginImported)
	if err != nil {
		return false
	}
	for range seq {
		return true
	}
	return false
}

// FontMetadata is written next to imported fonts
type FontMetadata struct {
	Source     string            `json:"source,omitempty"`
	URL        string            `json:"url,omitempty"`
	ImportedAt time.Time         `json:"imported_at"`
	Additional map[string]string `json:"additional,omitempty"`
}

func (l *Library) install(font RemoteFont, data io.Reader) ([]string, error) {
	familyName := sanitizeFontName(font.Name)
	if familyName == "" {
		return nil, fmt.Errorf("invalid font name %q", font.Name)
	}

	// Read all data into memory; zip needs random access
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, data); err != nil {
		return nil, fmt.Errorf("reading font data: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return nil, fmt.Errorf("reading zip data: %w", err)
	}

	familyDir := filepath.Join(l.dir, familyName)
	if err := os.MkdirAll(familyDir, 0755); err != nil {
		return nil, fmt.Errorf("creating font directory: %w", err)
	}

	var installed []string
	for _, file := range zipReader.File {
		base := path.Base(strings.ReplaceAll(file.Name, `\`, "/"))
		if file.FileInfo().IsDir() || strings.HasPrefix(base, ".") {
			continue
		}

		switch {
		case IsFontFile(base):
			dest, err := extractZipFile(file, familyDir, base)
			if err != nil {
				return nil, fmt.Errorf("extracting font file %s: %w", file.Name, err)
			}
			installed = append(installed, dest)
		case strings.EqualFold(base, "LICENSE"), strings.EqualFold(base, "LICENSE.txt"), strings.EqualFold(base, "OFL.txt"):
			if _, err := extractZipFile(file, familyDir, base); err != nil {
				return nil, fmt.Errorf("extracting license file: %w", err)
			}
		}
	}

	if len(installed) == 0 {
		os.RemoveAll(familyDir)
		return nil, fmt.Errorf("no valid font files found in archive")
	}

	if err := writeMetadata(familyDir, font); err != nil {
		return nil, fmt.Errorf("storing font metadata: %w", err)
	}

	l.logger.Info("font imported",
		zap.String("font", font.Name),
		zap.String("source", font.Source),
		zap.Int("files", len(installed)))
	return installed, nil
}

func writeMetadata(familyDir string, font RemoteFont) error {
	if font.Source != "" {
		if err := os.WriteFile(filepath.Join(familyDir, ".source"), []byte(font.Source), 0644); err != nil {
			return fmt.Errorf("writing source metadata: %w", err)
		}
	}

	meta := FontMetadata{
		Source:     font.Source,
		URL:        font.URL,
		ImportedAt: time.Now().UTC(),
		Additional: font.Meta,
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(familyDir, ".imported"), raw, 0644); err != nil {
		return fmt.Errorf("writing import metadata: %w", err)
	}
	return nil
}

// extractZipFile writes file to dir/name. Only the base name of the
// archive entry is used, so entries cannot escape dir.
func extractZipFile(file *zip.File, dir, name string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("opening file in archive: %w", err)
	}
	defer src.Close()

	destFile := filepath.Join(dir, name)
	dest, err := os.Create(destFile)
	if err != nil {
		return "", fmt.Errorf("creating destination file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("copying file contents: %w", err)
	}
	return destFile, nil
}

func sanitizeFontName(name string) string {
	// Remove any potentially problematic characters from font name
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
	return strings.Trim(name, "-")
}
