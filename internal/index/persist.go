package index

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/seanblong/videoseek/pkg/models"
)

// Vector artifact layout, little-endian:
// magic uint32, version uint32, dim uint32, count uint64, then count*dim
// float32 values in insertion order. Metadata lives in a gob sidecar.
const (
	vectorMagic   = 0x56534958 // "VSIX"
	vectorVersion = 1
)

// MetadataPath derives the metadata sidecar path from the vector artifact
// path by replacing its extension, e.g. video_index.faiss ->
// video_index_metadata.gob.
func MetadataPath(indexFile string) string {
	base := strings.TrimSuffix(indexFile, filepath.Ext(indexFile))
	return base + "_metadata.gob"
}

// save writes both artifacts via temp file + rename. Callers hold the write
// lock.
func (ix *Index) save() error {
	if err := writeAtomic(ix.path, func(w io.Writer) error {
		return ix.writeVectors(w)
	}); err != nil {
		return fmt.Errorf("write vectors %s: %w", ix.path, err)
	}
	if err := writeAtomic(ix.metaPath, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(ix.entries)
	}); err != nil {
		return fmt.Errorf("write metadata %s: %w", ix.metaPath, err)
	}
	return nil
}

// load reconstructs the index from disk. Missing artifacts on both sides
// means a fresh index; a lone artifact, header mismatch, or unequal counts
// is ErrInconsistentState.
func (ix *Index) load() error {
	haveVec := fileExists(ix.path)
	haveMeta := fileExists(ix.metaPath)
	switch {
	case !haveVec && !haveMeta:
		return nil
	case haveVec != haveMeta:
		return fmt.Errorf("%w: have vectors=%v metadata=%v", ErrInconsistentState, haveVec, haveMeta)
	}

	vectors, err := readVectors(ix.path, ix.dim)
	if err != nil {
		return err
	}

	f, err := os.Open(ix.metaPath)
	if err != nil {
		return fmt.Errorf("open metadata %s: %w", ix.metaPath, err)
	}
	defer f.Close()
	var entries []models.IndexEntry
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&entries); err != nil {
		return fmt.Errorf("decode metadata %s: %w", ix.metaPath, err)
	}

	if len(vectors) != len(entries) {
		return fmt.Errorf("%w: %d vectors, %d metadata entries", ErrInconsistentState, len(vectors), len(entries))
	}
	ix.vectors = vectors
	ix.entries = entries
	return nil
}

func (ix *Index) writeVectors(w io.Writer) error {
	hdr := []any{
		uint32(vectorMagic),
		uint32(vectorVersion),
		uint32(ix.dim),
		uint64(len(ix.vectors)),
	}
	for _, v := range hdr {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, vec := range ix.vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	return nil
}

func readVectors(path string, dim int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vectors %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic, version, fileDim uint32
	var count uint64
	for _, dst := range []any{&magic, &version, &fileDim} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("%w: short header in %s", ErrInconsistentState, path)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: short header in %s", ErrInconsistentState, path)
	}
	if magic != vectorMagic || version != vectorVersion {
		return nil, fmt.Errorf("%w: %s is not a recognized vector artifact", ErrInconsistentState, path)
	}
	if int(fileDim) != dim {
		return nil, fmt.Errorf("%w: artifact dimension %d, configured %d", ErrInconsistentState, fileDim, dim)
	}

	vectors := make([][]float32, 0, count)
	for i := uint64(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("%w: truncated vector data in %s", ErrInconsistentState, path)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	name := tmp.Name()
	tmp = nil
	return os.Rename(name, path)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
