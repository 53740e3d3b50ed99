// Package source enumerates the markup documents of a corpus.
package source

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/FocuswithJustin/JuniperTF/core/errors"
)

// IgnoreFile is read from the corpus root when present. It uses
// gitignore syntax.
const IgnoreFile = ".tfignore"

// Group is one folder of documents. Folder is relative to the corpus root
// with forward slashes; "" is the root itself.
type Group struct {
	Folder string
	Files  []string
}

// Source supplies documents in a stable order.
type Source interface {
	Groups() ([]Group, error)
	Read(folder, file string) ([]byte, error)
}

// DocPath returns the slash separated path of a document within its source.
func DocPath(folder, file string) string {
	if folder == "" {
		return file
	}
	return path.Join(folder, file)
}

// Dir is a Source backed by a directory tree of .xml files.
type Dir struct {
	root   string
	ignore *ignore.GitIgnore
}

// NewDir returns a Source for root. Paths matching the patterns in the
// root's .tfignore file or in excludes are skipped.
func NewDir(root string, excludes ...string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewIO("stat", root, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidation("source", root+" is not a directory")
	}

	var lines []string
	if data, err := os.ReadFile(filepath.Join(root, IgnoreFile)); err == nil {
		lines = append(lines, strings.Split(string(data), "\n")...)
	} else if !os.IsNotExist(err) {
		return nil, errors.NewIO("read", filepath.Join(root, IgnoreFile), err)
	}
	lines = append(lines, excludes...)

	d := &Dir{root: root}
	if len(lines) > 0 {
		d.ignore = ignore.CompileIgnoreLines(lines...)
	}
	return d, nil
}

// Root returns the corpus root directory.
func (d *Dir) Root() string { return d.root }

// Groups implements Source. Folders and files are sorted by name.
func (d *Dir) Groups() ([]Group, error) {
	byFolder := make(map[string][]string)

	err := filepath.WalkDir(d.root, func(p string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if p == d.root {
				return nil
			}
			if strings.HasPrefix(entry.Name(), ".") || d.ignored(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(entry.Name(), ".") || !strings.EqualFold(filepath.Ext(p), ".xml") {
			return nil
		}
		if d.ignored(rel) {
			return nil
		}

		folder := path.Dir(rel)
		if folder == "." {
			folder = ""
		}
		byFolder[folder] = append(byFolder[folder], path.Base(rel))
		return nil
	})
	if err != nil {
		return nil, errors.NewIO("walk", d.root, err)
	}

	groups := make([]Group, 0, len(byFolder))
	for folder, files := range byFolder {
		sort.Strings(files)
		groups = append(groups, Group{Folder: folder, Files: files})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Folder < groups[j].Folder })
	return groups, nil
}

func (d *Dir) ignored(rel string) bool {
	return d.ignore != nil && d.ignore.MatchesPath(rel)
}

// Read implements Source.
func (d *Dir) Read(folder, file string) ([]byte, error) {
	p := filepath.Join(d.root, filepath.FromSlash(folder), file)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.NewIO("read", p, err)
	}
	return data, nil
}

// Memory is an in-memory Source, mostly for tests and embedding.
type Memory struct {
	groups []Group
	data   map[string][]byte
}

// NewMemory returns an empty Memory source.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Add appends a document. Documents keep the order they were added in.
func (m *Memory) Add(folder, file string, data []byte) {
	m.data[DocPath(folder, file)] = data
	for i := range m.groups {
		if m.groups[i].Folder == folder {
			m.groups[i].Files = append(m.groups[i].Files, file)
			return
		}
	}
	m.groups = append(m.groups, Group{Folder: folder, Files: []string{file}})
}

// Groups implements Source.
func (m *Memory) Groups() ([]Group, error) {
	out := make([]Group, len(m.groups))
	for i, g := range m.groups {
		out[i] = Group{Folder: g.Folder, Files: append([]string(nil), g.Files...)}
	}
	return out, nil
}

// Read implements Source.
func (m *Memory) Read(folder, file string) ([]byte, error) {
	data, ok := m.data[DocPath(folder, file)]
	if !ok {
		return nil, errors.NewNotFound("document", DocPath(folder, file))
	}
	return data, nil
}
