//go:build linux

// Package guest loads benchmark guest images into VM memory.
package guest

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/cavaliergopher/cpio"
	"github.com/loicpoulain/kvmlat/vmm"
)

var (
	ErrImageNotFound = errors.New("guest: image not found")
	ErrImageTooLarge = errors.New("guest: image is larger than guest memory")
)

// Image is a raw guest binary, loaded verbatim at guest physical address 0.
type Image struct {
	Path string
}

// Bundle is a cpio archive, optionally gzipped, holding guest images for
// several architectures.
type Bundle struct {
	Path string

	// Name is the archive member to load.
	// If Name is empty, DefaultImageName is used.
	Name string
}

// Open returns a loader for path. Paths ending in .cpio or .cpio.gz are
// bundles; anything else is a raw image.
func Open(path string) vmm.Loader {
	if strings.HasSuffix(path, ".cpio") || strings.HasSuffix(path, ".cpio.gz") {
		return &Bundle{Path: path}
	}

	return &Image{Path: path}
}

// LoadMemory copies the image to the start of mem. Nothing is written to mem
// if the image can't be read in full or doesn't fit.
func (img *Image) LoadMemory(mem []byte) error {
	f, err := os.Open(img.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImageNotFound, err)
	}

	defer f.Close()

	return load(mem, f, img.Path)
}

// LoadMemory copies the bundle member to the start of mem.
func (b *Bundle) LoadMemory(mem []byte) error {
	name := b.Name
	if name == "" {
		name = DefaultImageName
	}

	f, err := os.Open(b.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImageNotFound, err)
	}

	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return fmt.Errorf("guest: bundle %s: %w", b.Path, err)
	}

	cr := cpio.NewReader(r)
	for {
		hdr, err := cr.Next()
		if err == io.EOF {
			return fmt.Errorf("%w: %s in bundle %s", ErrImageNotFound, name, b.Path)
		}

		if err != nil {
			return fmt.Errorf("guest: bundle %s: %w", b.Path, err)
		}

		if path.Clean(hdr.Name) == name {
			return load(mem, cr, b.Path+":"+name)
		}
	}
}

// load reads at most len(mem)+1 bytes from r so an oversized image is
// detected without reading all of it.
func load(mem []byte, r io.Reader, name string) error {
	buf, err := io.ReadAll(io.LimitReader(r, int64(len(mem))+1))
	if err != nil {
		return fmt.Errorf("guest: read %s: %w", name, err)
	}

	if len(buf) > len(mem) {
		return fmt.Errorf("%w: %s > %d bytes", ErrImageTooLarge, name, len(mem))
	}

	copy(mem, buf)
	return nil
}

var gzipMagic = []byte{0x1f, 0x8b}

func decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}

	if bytes.Equal(magic, gzipMagic) {
		return gzip.NewReader(br)
	}

	return br, nil
}
