package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// File length thresholds
const (
	MaxNameDifference = 10
)

// PartSuffix marks delivery parts next to their artifact
const PartSuffix = ".part"

// MediaExtensions are the file extensions a back end may produce
var (
	MediaExtensions = []string{".mp4", ".webm", ".mkv", ".m4a", ".mp3", ".opus", ".ogg", ".3gp"}
)

// File extensions to skip
var (
	SkippedExtensions = []string{".part", ".ytdl", ".tmp"}
)

// reservedChars cannot appear in file names on at least one supported platform
const reservedChars = `<>:"/\|?*`

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(fs afero.Fs, dirPath string) error {
	if _, err := fs.Stat(dirPath); os.IsNotExist(err) {
		return fs.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// SanitizeFilename replaces characters that are not allowed in file names with '_'
func SanitizeFilename(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if strings.ContainsRune(reservedChars, r) || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	return strings.TrimSpace(sanitized)
}

// IsMediaFile reports whether name carries a media extension and is not a temporary download
func IsMediaFile(name string) bool {
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) {
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, m := range MediaExtensions {
		if ext == m {
			return true
		}
	}
	return false
}

// FindDownloadedFile locates a file a back end wrote into dir when the path
// was not reported. It tries the sanitized title with the expected extension,
// then media files with a similar name, then the newest media file.
func FindDownloadedFile(fs afero.Fs, dir, title, ext string) (string, error) {
	base := SanitizeFilename(title)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if base != "" && ext != "" {
		exact := filepath.Join(dir, base+ext)
		if _, err := fs.Stat(exact); err == nil {
			return exact, nil
		}
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var candidates []string
	var media []os.FileInfo

	for _, entry := range entries {
		if entry.IsDir() || !IsMediaFile(entry.Name()) {
			continue
		}
		media = append(media, entry)

		entryExt := filepath.Ext(entry.Name())
		entryBase := strings.TrimSuffix(entry.Name(), entryExt)
		if base != "" && isSimilarFileName(entryBase, base) && (ext == "" || strings.EqualFold(entryExt, ext)) {
			candidates = append(candidates, filepath.Join(dir, entry.Name()))
		}
	}

	if len(candidates) > 0 {
		sort.Strings(candidates)
		return candidates[0], nil
	}

	if len(media) > 0 {
		sort.Slice(media, func(i, j int) bool {
			return media[i].ModTime().After(media[j].ModTime())
		})
		return filepath.Join(dir, media[0].Name()), nil
	}

	return "", fmt.Errorf("file not found for %q in %s", title, dir)
}

// PartPath returns the deterministic name of part index (1-based) of artifactPath
func PartPath(artifactPath string, index int) string {
	return fmt.Sprintf("%s%s%03d", artifactPath, PartSuffix, index)
}

// isSimilarFileName checks if two file names are similar enough to be considered the same file
func isSimilarFileName(name1, name2 string) bool {
	clean1 := strings.TrimSpace(name1)
	clean2 := strings.TrimSpace(name2)

	if clean1 == clean2 {
		return true
	}

	// Downloaders add separators and format suffixes such as ".f137"
	for _, variation := range []string{"-" + clean1, clean1 + "-", "_" + clean1, clean1 + "_"} {
		if clean2 == variation {
			return true
		}
	}

	if strings.Contains(clean1, clean2) || strings.Contains(clean2, clean1) {
		diff := len(clean1) - len(clean2)
		if diff < 0 {
			diff = -diff
		}
		if diff <= MaxNameDifference {
			return true
		}
	}

	return false
}
