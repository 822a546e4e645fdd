package prompt

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/teranos/xalq/errors"
)

const promptExt = ".md"

// LocalStore is the prompt directory. Reads and writes of the same file
// are serialized in-process by a per-name lock.
type LocalStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewLocalStore returns a store over dir. The directory need not exist yet.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir, locks: make(map[string]*sync.RWMutex)}
}

// Dir returns the prompt directory
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) lockFor(name string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[name] = l
	}
	return l
}

// Find scans the directory in name order and returns the first *.md file
// matching input exactly, as input+".md", or by normalized stem.
func (s *LocalStore) Find(input string) (string, bool) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", false
	}

	target := Normalize(input)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, promptExt) {
			continue
		}
		if name == input || name == input+promptExt {
			return name, true
		}
		if target != "" && Normalize(strings.TrimSuffix(name, promptExt)) == target {
			return name, true
		}
	}
	return "", false
}

// Exists reports whether the exact file name is present
func (s *LocalStore) Exists(name string) bool {
	if !validFileName(name) {
		return false
	}
	info, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && !info.IsDir()
}

// Read returns the content of a prompt file
func (s *LocalStore) Read(name string) (string, error) {
	if !validFileName(name) {
		return "", errors.Wrapf(errors.ErrPromptNotFound, "invalid prompt file name %q", name)
	}
	l := s.lockFor(name)
	l.RLock()
	defer l.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(errors.ErrPromptNotFound, "%s", name)
		}
		return "", errors.Wrapf(err, "failed to read prompt %s", name)
	}
	return string(data), nil
}

// Write stores content under name, replacing any existing file.
// The file is written to a temp name and renamed so readers never see a partial prompt.
func (s *LocalStore) Write(name, content string) error {
	if !validFileName(name) {
		return errors.Wrapf(errors.ErrInvalidRequest, "invalid prompt file name %q", name)
	}
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create prompt directory %s", s.dir)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp prompt file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write prompt %s", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to write prompt %s", name)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return errors.Wrapf(err, "failed to store prompt %s", name)
	}
	return nil
}

// Names lists local prompt names without the .md extension, sorted
func (s *LocalStore) Names() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), promptExt) && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, strings.TrimSuffix(e.Name(), promptExt))
		}
	}
	sort.Strings(names)
	return names
}

// validFileName rejects names that could escape the prompt directory
func validFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return filepath.Base(name) == name
}
