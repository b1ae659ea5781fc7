// Package ioformat reads the TEXMEX-style fvecs/ivecs vector file formats
// through a small pluggable reader contract, with a factory registry keyed
// by format tag so additional formats can be added without touching the
// core index.
package ioformat

import "fmt"

// Reader opens a vector file and yields its contents as a dense matrix.
// All records in one file must agree on dimension.
type Reader interface {
	// Open reads the file's header enough to report its shape, returning
	// (dim, n).
	Open(path string) (dim int, n int, err error)

	// ReadAll reads every record into a dense N x dim matrix.
	ReadAll() ([][]float32, error)

	// Close releases any resources Open acquired.
	Close() error
}

// Constructor builds a fresh, unopened Reader instance.
type Constructor func() Reader

// Registry maps a format tag (conventionally a file extension without the
// leading dot, e.g. "fvecs") to a Reader constructor. It is a plain value
// owned by whoever assembles a driver, not a global singleton, mirroring
// the quantizer-factory registry pattern used elsewhere in this codebase's
// lineage, repurposed here for file formats instead of quantization
// algorithms.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor for the given format tag. Returns an error if
// a constructor is already registered for that tag.
func (r *Registry) Register(tag string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("ioformat: constructor cannot be nil")
	}
	if _, exists := r.constructors[tag]; exists {
		return fmt.Errorf("ioformat: format %q already registered", tag)
	}
	r.constructors[tag] = ctor
	return nil
}

// New constructs a fresh Reader for the given format tag.
func (r *Registry) New(tag string) (Reader, error) {
	ctor, exists := r.constructors[tag]
	if !exists {
		return nil, fmt.Errorf("ioformat: no reader registered for format %q", tag)
	}
	return ctor(), nil
}

// Supports reports whether a constructor is registered for tag.
func (r *Registry) Supports(tag string) bool {
	_, exists := r.constructors[tag]
	return exists
}

// DefaultRegistry returns a registry pre-populated with the fvecs and ivecs
// readers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("fvecs", func() Reader { return &FvecsReader{} })
	_ = r.Register("ivecs", func() Reader { return &IvecsReader{} })
	return r
}
