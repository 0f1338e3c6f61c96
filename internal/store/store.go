// Package store persists per-node artifacts under a caller-supplied storage
// root. Three subdirectories are created idempotently before first use:
//
//	transformers/  fitted transformer parameters, one artifact per node name
//	outputs/       durably saved node outputs
//	tmp/           scratch node outputs, cleaned between runs
//
// At most one process may touch a given storage root at a time; there is no
// file locking.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vk/fitgrid/internal/payload"
	"github.com/vk/fitgrid/internal/transform"
)

// Area selects which output directory an artifact lives in.
type Area int

const (
	// Durable artifacts live under outputs/ and survive across runs.
	Durable Area = iota
	// Scratch artifacts live under tmp/ and are removed by CleanScratch.
	Scratch
)

func (a Area) dir() string {
	if a == Scratch {
		return "tmp"
	}
	return "outputs"
}

// Codec serializes payloads to bytes and back. The engine only relies on a
// read-back producing an equivalent value.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// FS is a filesystem-backed artifact store.
type FS struct {
	root  string
	codec Codec
}

// Option configures an FS.
type Option func(*FS)

// WithCodec overrides the default msgpack codec.
func WithCodec(c Codec) Option {
	return func(s *FS) { s.codec = c }
}

// Open prepares the storage root, creating the layout directories if needed.
func Open(root string, opts ...Option) (*FS, error) {
	if root == "" {
		return nil, errors.New("storage root must not be empty")
	}
	s := &FS{root: root, codec: Msgpack{}}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{"transformers", "outputs", "tmp"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("preparing storage root %q: %w", root, err)
		}
	}
	return s, nil
}

// Root returns the storage root path.
func (s *FS) Root() string { return s.root }

func (s *FS) outputPath(area Area, name string) string {
	return filepath.Join(s.root, area.dir(), name)
}

// SaveOutput writes a node's output payload into the given area. The write
// goes through a temp file plus rename so readers never observe a torn
// artifact.
func (s *FS) SaveOutput(area Area, name string, p payload.Payload) error {
	data, err := s.codec.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding output of %q: %w", name, err)
	}
	return atomicWrite(s.outputPath(area, name), data)
}

// LoadOutput reads a node's output payload back from the given area.
func (s *FS) LoadOutput(area Area, name string) (payload.Payload, error) {
	data, err := os.ReadFile(s.outputPath(area, name))
	if err != nil {
		return nil, fmt.Errorf("loading output of %q: %w", name, err)
	}
	var p payload.Payload
	if err := s.codec.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding output of %q: %w", name, err)
	}
	return p, nil
}

// OutputExists reports whether an output artifact exists for the node.
func (s *FS) OutputExists(area Area, name string) bool {
	_, err := os.Stat(s.outputPath(area, name))
	return err == nil
}

// RemoveOutput deletes a node's output artifact. A missing artifact is not
// an error.
func (s *FS) RemoveOutput(area Area, name string) error {
	err := os.Remove(s.outputPath(area, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CleanScratch removes every artifact under tmp/.
func (s *FS) CleanScratch() error {
	dir := filepath.Join(s.root, "tmp")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// TransformerPath returns the artifact path for a node's fitted transformer.
func (s *FS) TransformerPath(name string) string {
	return filepath.Join(s.root, "transformers", name)
}

// TransformerExists reports whether a fitted transformer artifact exists for
// the node.
func (s *FS) TransformerExists(name string) bool {
	_, err := os.Stat(s.TransformerPath(name))
	return err == nil
}

// SaveTransformer persists a transformer's learned state under the node name.
// Transformers without persistence hooks get a marker artifact so that
// TransformerExists keeps answering correctly.
func (s *FS) SaveTransformer(name string, p transform.Persistable) error {
	path := s.TransformerPath(name)
	if p != nil {
		return p.Save(path)
	}
	data, err := s.codec.Marshal(payload.Payload{})
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// LoadTransformer restores a transformer's learned state from the artifact
// saved under the node name. For transformers without persistence hooks it
// only verifies the artifact exists.
func (s *FS) LoadTransformer(name string, p transform.Persistable) error {
	path := s.TransformerPath(name)
	if p != nil {
		return p.Load(path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("transformer artifact for %q: %w", name, err)
	}
	return nil
}

// CopyTransformer duplicates the artifact saved under from into the slot of
// to. Used for parameter sharing between nodes.
func (s *FS) CopyTransformer(from, to string) error {
	src, err := os.Open(s.TransformerPath(from))
	if err != nil {
		return fmt.Errorf("copying transformer %q to %q: %w", from, to, err)
	}
	defer src.Close()

	dst, err := os.Create(s.TransformerPath(to))
	if err != nil {
		return fmt.Errorf("copying transformer %q to %q: %w", from, to, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".partial"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
