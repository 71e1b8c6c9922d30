package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// audioExtensions are the playable container formats.
var audioExtensions = []string{".flac", ".mp3", ".wav", ".ogg"}

func isAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return lo.Contains(audioExtensions, ext)
}

// LibraryEntry is one row in the library browser.
type LibraryEntry struct {
	Name string
	Path string
	Dir  bool
}

// Library browses the music directory tree and hands audio files to the
// playlist.
type Library struct {
	root    string
	current string
	entries []LibraryEntry
}

// NewLibrary starts browsing at root, falling back to the working directory.
func NewLibrary(root string) *Library {
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Library{root: root, current: root}
}

// Path returns the directory currently shown.
func (l *Library) Path() string { return l.current }

// Entries returns the rows of the current directory.
func (l *Library) Entries() []LibraryEntry { return l.entries }

// Scan reads the current directory, keeping subdirectories and audio files,
// directories first.
func (l *Library) Scan() error {
	files, err := os.ReadDir(l.current)
	if err != nil {
		return err
	}
	kept := lo.Filter(files, func(f os.DirEntry, _ int) bool {
		if strings.HasPrefix(f.Name(), ".") {
			return false
		}
		return f.IsDir() || isAudioFile(f.Name())
	})
	l.entries = lo.Map(kept, func(f os.DirEntry, _ int) LibraryEntry {
		return LibraryEntry{
			Name: f.Name(),
			Path: filepath.Join(l.current, f.Name()),
			Dir:  f.IsDir(),
		}
	})
	sort.Slice(l.entries, func(i, j int) bool {
		if l.entries[i].Dir != l.entries[j].Dir {
			return l.entries[i].Dir
		}
		return l.entries[i].Name < l.entries[j].Name
	})
	return nil
}

// Enter descends into the entry when it is a directory.
func (l *Library) Enter(i int) error {
	if i < 0 || i >= len(l.entries) || !l.entries[i].Dir {
		return nil
	}
	l.current = l.entries[i].Path
	return l.Scan()
}

// Up ascends towards the library root. At the root it stays put.
func (l *Library) Up() error {
	if l.current == l.root {
		return nil
	}
	l.current = filepath.Dir(l.current)
	return l.Scan()
}

// CollectTracks walks path and returns a Track for every audio file under
// it, in walk order. A plain file yields a single track. Unreadable
// subtrees are skipped rather than failing the whole collection.
func CollectTracks(path string) []*Track {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		if !isAudioFile(path) {
			return nil
		}
		return []*Track{NewTrack(path)}
	}

	var tracks []*Track
	filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && isAudioFile(d.Name()) {
			tracks = append(tracks, NewTrack(p))
		}
		return nil
	})
	return tracks
}
