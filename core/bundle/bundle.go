// Package bundle packs a directory of feature files into a single
// compressed archive with a manifest of content hashes.
package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperTF/core/cas"
	"github.com/FocuswithJustin/JuniperTF/core/errors"
	"github.com/FocuswithJustin/JuniperTF/internal/validation"
)

// Version is the current bundle format version.
const Version = "1.0.0"

// ManifestName is the archive member holding the manifest. It is always
// the first member.
const ManifestName = "manifest.json"

// CompressionType specifies the compression algorithm of an archive.
type CompressionType string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ CompressionType = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
)

// ParseCompression maps a flag value to a CompressionType.
func ParseCompression(s string) (CompressionType, error) {
	switch CompressionType(strings.ToLower(s)) {
	case "", CompressionXZ:
		return CompressionXZ, nil
	case CompressionGzip, "gz":
		return CompressionGzip, nil
	}
	return "", errors.NewUnsupported("compression", s)
}

// Options configures Pack.
type Options struct {
	// Compression defaults to XZ.
	Compression CompressionType
	// Attributes are copied into the manifest.
	Attributes map[string]string
	// CreatedAt is recorded in the manifest when set. Leaving it empty
	// keeps archives of identical input byte-identical.
	CreatedAt time.Time
}

// FileRecord describes one packed file.
type FileRecord struct {
	Name      string         `json:"name"`
	SizeBytes int64          `json:"size_bytes"`
	Hashes    cas.HashResult `json:"hashes"`
}

// Manifest is the content of manifest.json.
type Manifest struct {
	BundleVersion string            `json:"bundle_version"`
	CreatedAt     string            `json:"created_at,omitempty"`
	Files         []FileRecord      `json:"files"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// ToJSON serializes the manifest.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses a manifest from JSON. Every file record must carry
// well-formed digests.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for _, f := range m.Files {
		if !cas.IsValidHash(f.Hashes.SHA256) || !cas.IsValidHash(f.Hashes.BLAKE3) {
			return nil, errors.NewValidation(f.Name, "malformed manifest hash")
		}
	}
	return &m, nil
}

// File returns the record of a packed file.
func (m *Manifest) File(name string) (FileRecord, bool) {
	for _, f := range m.Files {
		if f.Name == name {
			return f, true
		}
	}
	return FileRecord{}, false
}

// Pack writes the regular files of dir, sorted by name, into archivePath.
func Pack(dir, archivePath string, opts Options) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIO("read directory", dir, err)
	}

	m := &Manifest{BundleVersion: Version, Attributes: opts.Attributes}
	if !opts.CreatedAt.IsZero() {
		m.CreatedAt = opts.CreatedAt.UTC().Format(time.RFC3339)
	}

	var names []string
	contents := make(map[string][]byte)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.NewIO("read", filepath.Join(dir, e.Name()), err)
		}
		names = append(names, e.Name())
		contents[e.Name()] = data
	}
	sort.Strings(names)
	for _, name := range names {
		data := contents[name]
		m.Files = append(m.Files, FileRecord{
			Name:      name,
			SizeBytes: int64(len(data)),
			Hashes:    cas.Hash(data),
		})
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer file.Close()

	var compressWriter io.WriteCloser
	switch opts.Compression {
	case CompressionGzip:
		compressWriter, err = gzip.NewWriterLevel(file, gzip.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ, "":
		compressWriter, err = xz.NewWriter(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
	default:
		return nil, errors.NewUnsupported("compression", string(opts.Compression))
	}

	tarWriter := tar.NewWriter(compressWriter)

	manifestData, err := m.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := writeToTar(tarWriter, ManifestName, manifestData); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	for _, name := range names {
		if err := writeToTar(tarWriter, name, contents[name]); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := compressWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewIO("close", archivePath, err)
	}
	return m, nil
}

// DetectCompression detects the compression type of an archive from its
// magic bytes.
func DetectCompression(archivePath string) (CompressionType, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	magic := make([]byte, 6)
	n, err := io.ReadFull(file, magic)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.NewIO("read magic bytes", archivePath, err)
	}
	if n < 2 {
		return "", errors.NewValidation("archive", "file too small to detect compression")
	}

	// gzip: 1f 8b
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}
	// xz: fd 37 7a 58 5a 00
	if n >= 6 && bytes.Equal(magic, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}) {
		return CompressionXZ, nil
	}
	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Unpack extracts an archive into destDir and verifies every file against
// the manifest hashes.
func Unpack(archivePath, destDir string) (*Manifest, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, errors.NewIO("create directory", destDir, err)
	}

	compression, err := DetectCompression(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect compression: %w", err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	var decompressReader io.Reader
	switch compression {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		decompressReader = gzReader
	case CompressionXZ:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		decompressReader = xzReader
	}

	tarReader := tar.NewReader(decompressReader)

	var manifest *Manifest
	seen := make(map[string]cas.HashResult)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		// Bundles are flat: members are plain file names.
		cleanPath, err := validation.SanitizePath(destDir, header.Name)
		if err != nil || validation.ValidateFilename(cleanPath) != nil {
			continue
		}

		data, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}

		if cleanPath == ManifestName {
			manifest, err = ParseManifest(data)
			if errors.Is(err, errors.ErrInvalidInput) {
				return nil, err
			}
			if err != nil {
				pe := errors.NewParse("JSON", ManifestName, err.Error())
				pe.Err = err
				return nil, pe
			}
			continue
		}

		if err := os.WriteFile(filepath.Join(destDir, cleanPath), data, 0644); err != nil {
			return nil, errors.NewIO("write", filepath.Join(destDir, cleanPath), err)
		}
		seen[cleanPath] = cas.Hash(data)
	}

	if manifest == nil {
		return nil, errors.NewNotFound("archive member", ManifestName)
	}
	for _, rec := range manifest.Files {
		got, ok := seen[rec.Name]
		if !ok {
			return nil, errors.NewNotFound("archive member", rec.Name)
		}
		if got != rec.Hashes {
			return nil, errors.NewValidation(rec.Name, "content does not match manifest hash")
		}
	}
	for name := range seen {
		if _, ok := manifest.File(name); !ok {
			return nil, errors.NewValidation(name, "file not listed in manifest")
		}
	}
	return manifest, nil
}

func writeToTar(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name:     name,
		Mode:     0644,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
