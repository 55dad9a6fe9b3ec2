package volume

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultDataRoot returns the conventional location of the CT archives,
// the liver directory under the user's home.
func DefaultDataRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "liver"), nil
}

// Load reads a volume from disk, dispatching on what the path is: a
// directory is treated as a DICOM series, anything else as a NIfTI file.
func Load(path string) (*Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat volume: %w", err)
	}
	if info.IsDir() {
		return ReadDICOMDir(path)
	}
	return ReadNIfTI(path)
}

// ReadZipped extracts one member of the archive <root>/<archive>.zip into a
// scratch directory, loads it as a volume and removes the scratch space
// again before returning. Each call uses its own uniquely named scratch
// directory, so concurrent extractions from the same root cannot collide,
// and cleanup runs on error paths too.
//
// A member name ending in "/" selects a whole directory inside the archive,
// which is extracted and loaded as a DICOM series.
func ReadZipped(root, archive, member string) (*Volume, error) {
	if root == "" {
		var err error
		root, err = DefaultDataRoot()
		if err != nil {
			return nil, err
		}
	}
	if filepath.Ext(archive) == "" {
		archive += ".zip"
	}
	archivePath := filepath.Join(root, archive)

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	scratch := filepath.Join(root, "temp-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	if strings.HasSuffix(member, "/") {
		dir, err := extractDir(&zr.Reader, member, scratch)
		if err != nil {
			return nil, err
		}
		return ReadDICOMDir(dir)
	}

	path, err := extractFile(&zr.Reader, member, scratch)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func extractFile(zr *zip.Reader, member, scratch string) (string, error) {
	for _, f := range zr.File {
		if f.Name != member {
			continue
		}
		dst := filepath.Join(scratch, filepath.Base(member))
		if err := copyZipEntry(f, dst); err != nil {
			return "", err
		}
		return dst, nil
	}
	return "", fmt.Errorf("member %q not found in archive", member)
}

func extractDir(zr *zip.Reader, prefix, scratch string) (string, error) {
	dir := filepath.Join(scratch, "series")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create series directory: %w", err)
	}
	found := false
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if strings.Contains(rel, "..") {
			return "", fmt.Errorf("refusing unsafe archive member %q", f.Name)
		}
		if err := copyZipEntry(f, filepath.Join(dir, filepath.Base(rel))); err != nil {
			return "", err
		}
		found = true
	}
	if !found {
		return "", fmt.Errorf("member %q not found in archive", prefix)
	}
	return dir, nil
}

func copyZipEntry(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive member %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}

// BinaryOutputPath derives the companion filename used when a mask is saved
// next to an intensity segmentation: base_binary.ext, keeping multi-part
// extensions like .nii.gz intact.
func BinaryOutputPath(path string) string {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	ext := ""
	if strings.HasSuffix(strings.ToLower(name), ".nii.gz") {
		ext = name[len(name)-7:]
	} else {
		ext = filepath.Ext(name)
	}
	base := name[:len(name)-len(ext)]
	return filepath.Join(dir, base+"_binary"+ext)
}
