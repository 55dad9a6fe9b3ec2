package volume

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestArchive builds <root>/<name>.zip containing the given members,
// each mapped to an on-disk source file.
func writeTestArchive(t *testing.T, root, name string, members map[string]string) {
	t.Helper()

	f, err := os.Create(filepath.Join(root, name+".zip"))
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for member, src := range members {
		w, err := zw.Create(member)
		if err != nil {
			t.Fatalf("create member %s: %v", member, err)
		}
		in, err := os.Open(src)
		if err != nil {
			t.Fatalf("open source %s: %v", src, err)
		}
		if _, err := io.Copy(w, in); err != nil {
			t.Fatalf("write member %s: %v", member, err)
		}
		in.Close()
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}

// TestReadZipped extracts a NIfTI member from an archive and verifies the
// scratch directory is gone afterwards.
func TestReadZipped(t *testing.T) {
	root := t.TempDir()

	vol := makeRampVolume(4, 4, 3)
	src := filepath.Join(root, "src.nii")
	if err := WriteNIfTI(src, vol); err != nil {
		t.Fatalf("WriteNIfTI failed: %v", err)
	}
	writeTestArchive(t, root, "volumes", map[string]string{"patient7.nii": src})

	got, err := ReadZipped(root, "volumes", "patient7.nii")
	if err != nil {
		t.Fatalf("ReadZipped failed: %v", err)
	}
	if got.Width != vol.Width || got.Height != vol.Height || got.Depth != vol.Depth {
		t.Errorf("dimensions = %dx%dx%d, want %dx%dx%d",
			got.Width, got.Height, got.Depth, vol.Width, vol.Height, vol.Depth)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "temp-") {
			t.Errorf("scratch directory %s left behind", e.Name())
		}
	}
}

// TestReadZippedScratchCleanupOnError verifies cleanup also happens when the
// member cannot be decoded.
func TestReadZippedScratchCleanupOnError(t *testing.T) {
	root := t.TempDir()

	junk := filepath.Join(root, "junk.nii")
	if err := os.WriteFile(junk, []byte("not a volume"), 0644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	writeTestArchive(t, root, "volumes", map[string]string{"bad.nii": junk})

	if _, err := ReadZipped(root, "volumes", "bad.nii"); err == nil {
		t.Fatal("expected an error for an undecodable member")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "temp-") {
			t.Errorf("scratch directory %s left behind after error", e.Name())
		}
	}
}

// TestReadZippedErrors covers the missing-archive and missing-member cases.
func TestReadZippedErrors(t *testing.T) {
	root := t.TempDir()

	if _, err := ReadZipped(root, "absent", "vol.nii"); err == nil {
		t.Error("expected an error for a missing archive")
	}

	vol := makeRampVolume(3, 3, 2)
	src := filepath.Join(root, "src.nii")
	if err := WriteNIfTI(src, vol); err != nil {
		t.Fatalf("WriteNIfTI failed: %v", err)
	}
	writeTestArchive(t, root, "volumes", map[string]string{"present.nii": src})

	if _, err := ReadZipped(root, "volumes", "missing.nii"); err == nil {
		t.Error("expected an error for a missing member")
	}
}

// TestBinaryOutputPath covers the mask companion naming, including the
// multi-part .nii.gz extension.
func TestBinaryOutputPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"seg.nii", "seg_binary.nii"},
		{"out/seg.nii.gz", "out/seg_binary.nii.gz"},
		{"result", "result_binary"},
		{"a/b/liver.NII.GZ", "a/b/liver_binary.NII.GZ"},
	}
	for _, c := range cases {
		if got := BinaryOutputPath(c.in); got != c.want {
			t.Errorf("BinaryOutputPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
