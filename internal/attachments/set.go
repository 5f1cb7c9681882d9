// Package attachments tracks the images of one product draft: images already stored on the server,
// referenced by URL, and files staged for upload. Each element carries a stable key assigned on insertion
// and is removed by that key, so removals never depend on positions.
package attachments

import (
	"slices"

	"github.com/google/uuid"
)

// Key identifies one element of a Set for its whole lifetime.
type Key string

// ExistingImage is an image persisted on the server. Removing it excludes the URL from the surviving list.
type ExistingImage struct {
	Key Key    `json:"key"`
	URL string `json:"url"`
}

// File is an upload before it is staged.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StagedFile is a file waiting to be uploaded with the next submission.
type StagedFile struct {
	Key         Key    `json:"key"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	data        []byte
}

// Data returns the staged payload.
func (f StagedFile) Data() []byte {
	return f.data
}

// Set holds the existing and staged sequences. The two are disjoint: an operation on one never touches the other.
// A Set is not safe for concurrent use; its owner serializes access.
type Set struct {
	existing []ExistingImage
	staged   []StagedFile
	newKey   func() Key
}

type Option func(*Set)

// WithKeyFunc overrides key generation.
func WithKeyFunc(fn func() Key) Option {
	return func(s *Set) { s.newKey = fn }
}

// New seeds a set with the given persisted image URLs, in order, and no staged files.
func New(urls []string, opts ...Option) *Set {
	s := &Set{newKey: func() Key { return Key(uuid.NewString()) }}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset(urls)
	return s
}

// Reset replaces both sequences: existing is seeded from urls and staged files are released.
func (s *Set) Reset(urls []string) {
	s.existing = make([]ExistingImage, 0, len(urls))
	for _, u := range urls {
		s.existing = append(s.existing, ExistingImage{Key: s.newKey(), URL: u})
	}
	s.staged = nil
}

// Stage appends f to the staged files and returns its key.
func (s *Set) Stage(f File) Key {
	k := s.newKey()
	s.staged = append(s.staged, StagedFile{
		Key:         k,
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        len(f.Data),
		data:        f.Data,
	})
	return k
}

// RemoveExisting excludes the existing image with key k. It reports whether such an image was present.
func (s *Set) RemoveExisting(k Key) bool {
	i := slices.IndexFunc(s.existing, func(e ExistingImage) bool { return e.Key == k })
	if i < 0 {
		return false
	}
	s.existing = slices.Delete(s.existing, i, i+1)
	return true
}

// RemoveStaged drops the staged file with key k. It reports whether such a file was present.
func (s *Set) RemoveStaged(k Key) bool {
	i := slices.IndexFunc(s.staged, func(f StagedFile) bool { return f.Key == k })
	if i < 0 {
		return false
	}
	s.staged = slices.Delete(s.staged, i, i+1)
	return true
}

// Existing returns a copy of the surviving existing images.
func (s *Set) Existing() []ExistingImage {
	return append([]ExistingImage{}, s.existing...)
}

// Staged returns a copy of the staged files.
func (s *Set) Staged() []StagedFile {
	return append([]StagedFile{}, s.staged...)
}

// SurvivingURLs returns the URLs of the existing images still kept, in order.
func (s *Set) SurvivingURLs() []string {
	urls := make([]string, 0, len(s.existing))
	for _, e := range s.existing {
		urls = append(urls, e.URL)
	}
	return urls
}
