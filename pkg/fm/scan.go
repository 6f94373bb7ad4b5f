package fm

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Extension is a recognized font file extension, lower-case without the dot
type Extension string

const (
	ExtTTF   Extension = "ttf"
	ExtOTF   Extension = "otf"
	ExtWOFF  Extension = "woff"
	ExtWOFF2 Extension = "woff2"
)

// Origin says where a scanned font was found
type Origin string

const (
	OriginSystem   Origin = "system"
	OriginUser     Origin = "user"
	OriginImported Origin = "imported"
)

// FontDescriptor describes one font file found on disk
type FontDescriptor struct {
	Name       string    // File name without extension
	SourcePath string    // Full path to the file
	Extension  Extension // Lower-case extension
	Origin     Origin
}

// FileName returns the base name of the font file.
func (d FontDescriptor) FileName() string {
	return filepath.Base(d.SourcePath)
}

// ParseExtension returns the font extension of name, matched
// case-insensitively.
func ParseExtension(name string) (Extension, bool) {
	switch ext := Extension(strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))); ext {
	case ExtTTF, ExtOTF, ExtWOFF, ExtWOFF2:
		return ext, true
	default:
		return "", false
	}
}

// IsFontFile reports whether name has a recognized font extension.
func IsFontFile(name string) bool {
	_, ok := ParseExtension(name)
	return ok
}

// NewDescriptor builds the descriptor for the font file at path.
func NewDescriptor(path string, origin Origin) (FontDescriptor, bool) {
	base := filepath.Base(path)
	ext, ok := ParseExtension(base)
	if !ok {
		return FontDescriptor{}, false
	}
	return FontDescriptor{
		Name:       strings.TrimSuffix(base, filepath.Ext(base)),
		SourcePath: path,
		Extension:  ext,
		Origin:     origin,
	}, true
}

// Scan lists the font files directly inside dir. The listing is taken once;
// the returned sequence filters it lazily and can be ranged repeatedly.
// Call Scan again for a fresh snapshot.
func Scan(dir string, origin Origin) (iter.Seq[FontDescriptor], error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	return func(yield func(FontDescriptor) bool) {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			d, ok := NewDescriptor(filepath.Join(dir, entry.Name()), origin)
			if !ok {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}, nil
}

// ScanTree lists font files in dir and all of its subdirectories.
// Unreadable subdirectories are skipped.
func ScanTree(dir string, origin Origin) (iter.Seq[FontDescriptor], error) {
	if _, err := readDir(dir); err != nil {
		return nil, err
	}

	var found []FontDescriptor
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if path != dir && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d, ok := NewDescriptor(path, origin); ok {
			found = append(found, d)
		}
		return nil
	})
	if err != nil {
		return nil, &DirectoryUnavailableError{Dir: dir, Err: err}
	}

	return func(yield func(FontDescriptor) bool) {
		for _, d := range found {
			if !yield(d) {
				return
			}
		}
	}, nil
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[FontDescriptor]) []FontDescriptor {
	var out []FontDescriptor
	for d := range seq {
		out = append(out, d)
	}
	return out
}

func readDir(dir string) ([]os.DirEntry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &DirectoryUnavailableError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &DirectoryUnavailableError{Dir: dir, Err: fmt.Errorf("not a directory")}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DirectoryUnavailableError{Dir: dir, Err: err}
	}
	return entries, nil
}
