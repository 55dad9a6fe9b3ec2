package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// WriteSTL saves triangles in binary STL format: an 80 byte header, a
// little-endian triangle count and 50 bytes per face.
func WriteSTL(path string, tris []Triangle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stl: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var header [80]byte
	copy(header[:], "liverextract surface")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write stl header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(tris))); err != nil {
		return fmt.Errorf("write stl count: %w", err)
	}
	for i := range tris {
		if err := binary.Write(w, binary.LittleEndian, &tris[i]); err != nil {
			return fmt.Errorf("write stl triangle: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return fmt.Errorf("write stl attribute: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write stl: %w", err)
	}
	return nil
}
