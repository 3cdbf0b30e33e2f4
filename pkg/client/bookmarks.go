package client

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Bookmark represents a saved server login.
type Bookmark struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Token    string `yaml:"token,omitempty"` // session token for resume
	LastUsed int64  `yaml:"last_used,omitempty"`
}

// BookmarkStore manages server bookmarks stored as YAML.
type BookmarkStore struct {
	path      string
	Bookmarks []Bookmark `yaml:"bookmarks"`
}

// NewBookmarkStore creates a bookmark store at path. An empty path uses
// servers.yaml next to the executable.
func NewBookmarkStore(path string) *BookmarkStore {
	if path == "" {
		exePath, err := os.Executable()
		if err != nil {
			exePath = "."
		}
		path = filepath.Join(filepath.Dir(exePath), "servers.yaml")
	}
	return &BookmarkStore{path: path}
}

// Load reads bookmarks from disk. Returns empty list if file doesn't exist.
func (bs *BookmarkStore) Load() error {
	data, err := os.ReadFile(bs.path)
	if err != nil {
		if os.IsNotExist(err) {
			bs.Bookmarks = nil
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, bs)
}

// Save writes bookmarks to disk.
func (bs *BookmarkStore) Save() error {
	data, err := yaml.Marshal(bs)
	if err != nil {
		return err
	}
	return os.WriteFile(bs.path, data, 0600)
}

// Add adds or updates a bookmark. Returns true if it was a new entry.
func (bs *BookmarkStore) Add(b Bookmark) bool {
	for i, existing := range bs.Bookmarks {
		if existing.URL == b.URL && existing.Username == b.Username {
			bs.Bookmarks[i] = b
			return false
		}
	}
	bs.Bookmarks = append(bs.Bookmarks, b)
	return true
}

// Forget clears the saved token for a login, reporting whether one was found.
func (bs *BookmarkStore) Forget(url, username string) bool {
	for i := range bs.Bookmarks {
		if bs.Bookmarks[i].URL == url && bs.Bookmarks[i].Username == username {
			bs.Bookmarks[i].Token = ""
			return true
		}
	}
	return false
}

// Find returns the bookmark for url and username, or nil.
func (bs *BookmarkStore) Find(url, username string) *Bookmark {
	for _, b := range bs.Bookmarks {
		if b.URL == url && b.Username == username {
			return &b
		}
	}
	return nil
}
