package volume

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// NIfTI-1 data type codes for the subset of voxel encodings found in CT
// archives.
const (
	niftiTypeUint8   = 2
	niftiTypeInt16   = 4
	niftiTypeInt32   = 8
	niftiTypeFloat32 = 16
	niftiTypeFloat64 = 64
	niftiTypeUint16  = 512
)

const niftiHeaderSize = 348

// niftiHeader mirrors the fixed 348-byte NIfTI-1 header layout. Field order
// and sizes must not change; the struct is read and written with
// encoding/binary.
type niftiHeader struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// ReadNIfTI loads a single-file NIfTI-1 volume (.nii or .nii.gz). Gzip
// compression is detected from the stream itself, not the filename, so a
// misnamed file still loads. Both byte orders are supported; the header's
// sizeof_hdr field decides which one the file uses.
func ReadNIfTI(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open nifti: %w", err)
	}
	defer f.Close()
	return readNIfTI(f)
}

func readNIfTI(r io.Reader) (*Volume, error) {
	br := newSniffReader(r)
	if gz, err := br.isGzip(); err != nil {
		return nil, fmt.Errorf("read nifti: %w", err)
	} else if gz {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("read nifti gzip: %w", err)
		}
		defer zr.Close()
		return decodeNIfTI(zr)
	}
	return decodeNIfTI(br)
}

func decodeNIfTI(r io.Reader) (*Volume, error) {
	raw := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read nifti header: %w", err)
	}

	// sizeof_hdr doubles as the byte order probe: it is 348 in the file's
	// native order.
	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(raw[0:4]) != niftiHeaderSize {
		if binary.BigEndian.Uint32(raw[0:4]) != niftiHeaderSize {
			return nil, fmt.Errorf("not a nifti-1 file: bad header size")
		}
		order = binary.BigEndian
	}

	var hdr niftiHeader
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, fmt.Errorf("decode nifti header: %w", err)
	}

	switch string(hdr.Magic[:3]) {
	case "n+1":
		// single-file layout, voxels follow in this stream
	case "ni1":
		return nil, fmt.Errorf("nifti header/image pairs are not supported")
	default:
		return nil, fmt.Errorf("not a nifti-1 file: bad magic %q", hdr.Magic[:])
	}

	ndim := int(hdr.Dim[0])
	if ndim < 3 || ndim > 7 {
		return nil, fmt.Errorf("unsupported nifti dimensionality %d", ndim)
	}
	width, height, depth := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("invalid nifti dimensions %dx%dx%d", width, height, depth)
	}
	for d := 4; d <= ndim; d++ {
		if hdr.Dim[d] > 1 {
			return nil, fmt.Errorf("only 3d volumes are supported, dim[%d]=%d", d, hdr.Dim[d])
		}
	}

	// Voxel data starts at vox_offset. The stream may be gzipped, so skip
	// rather than seek.
	if skip := int64(hdr.VoxOffset) - niftiHeaderSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("skip to voxel data: %w", err)
		}
	}

	nvox := width * height * depth
	data, err := readVoxels(r, order, int(hdr.Datatype), nvox)
	if err != nil {
		return nil, err
	}

	// slope 0 means no rescale per the NIfTI-1 convention
	if hdr.SclSlope != 0 && (hdr.SclSlope != 1 || hdr.SclInter != 0) {
		slope := float64(hdr.SclSlope)
		inter := float64(hdr.SclInter)
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	vol := &Volume{
		Data:   data,
		Width:  width,
		Height: height,
		Depth:  depth,
		Spacing: [3]float64{
			float64(abs32(hdr.Pixdim[1])),
			float64(abs32(hdr.Pixdim[2])),
			float64(abs32(hdr.Pixdim[3])),
		},
		Origin: [3]float64{
			float64(hdr.QoffsetX),
			float64(hdr.QoffsetY),
			float64(hdr.QoffsetZ),
		},
	}
	for i, s := range vol.Spacing {
		if s == 0 {
			vol.Spacing[i] = 1
		}
	}
	return vol, nil
}

func readVoxels(r io.Reader, order binary.ByteOrder, datatype, nvox int) ([]float64, error) {
	data := make([]float64, nvox)
	switch datatype {
	case niftiTypeUint8:
		buf := make([]byte, nvox)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read voxel data: %w", err)
		}
		for i, b := range buf {
			data[i] = float64(b)
		}
	case niftiTypeInt16:
		buf := make([]int16, nvox)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf("read voxel data: %w", err)
		}
		for i, s := range buf {
			data[i] = float64(s)
		}
	case niftiTypeUint16:
		buf := make([]uint16, nvox)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf("read voxel data: %w", err)
		}
		for i, s := range buf {
			data[i] = float64(s)
		}
	case niftiTypeInt32:
		buf := make([]int32, nvox)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf("read voxel data: %w", err)
		}
		for i, s := range buf {
			data[i] = float64(s)
		}
	case niftiTypeFloat32:
		buf := make([]float32, nvox)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf("read voxel data: %w", err)
		}
		for i, s := range buf {
			data[i] = float64(s)
		}
	case niftiTypeFloat64:
		if err := binary.Read(r, order, data); err != nil {
			return nil, fmt.Errorf("read voxel data: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported nifti datatype %d", datatype)
	}
	return data, nil
}

// WriteNIfTI stores a volume as a single-file little-endian NIfTI-1 image.
// Binary masks are written as uint8, everything else as float32. A path
// ending in .gz produces a gzip-compressed file.
func WriteNIfTI(path string, vol *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create nifti: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zw := gzip.NewWriter(f)
		defer zw.Close()
		w = zw
	}
	return encodeNIfTI(w, vol)
}

func encodeNIfTI(w io.Writer, vol *Volume) error {
	if len(vol.Data) != vol.Width*vol.Height*vol.Depth {
		return fmt.Errorf("volume data length %d does not match dimensions %dx%dx%d",
			len(vol.Data), vol.Width, vol.Height, vol.Depth)
	}

	datatype := int16(niftiTypeFloat32)
	bitpix := int16(32)
	if vol.IsBinary() {
		datatype = niftiTypeUint8
		bitpix = 8
	}

	hdr := niftiHeader{
		SizeofHdr: niftiHeaderSize,
		Regular:   'r',
		Datatype:  datatype,
		Bitpix:    bitpix,
		VoxOffset: 352,
		SclSlope:  1,
		SformCode: 1,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = int16(vol.Width)
	hdr.Dim[2] = int16(vol.Height)
	hdr.Dim[3] = int16(vol.Depth)
	for d := 4; d < 8; d++ {
		hdr.Dim[d] = 1
	}
	hdr.Pixdim[0] = 1
	hdr.Pixdim[1] = float32(vol.Spacing[0])
	hdr.Pixdim[2] = float32(vol.Spacing[1])
	hdr.Pixdim[3] = float32(vol.Spacing[2])
	hdr.XyztUnits = 2 // millimeters
	hdr.QoffsetX = float32(vol.Origin[0])
	hdr.QoffsetY = float32(vol.Origin[1])
	hdr.QoffsetZ = float32(vol.Origin[2])
	hdr.SrowX = [4]float32{float32(vol.Spacing[0]), 0, 0, float32(vol.Origin[0])}
	hdr.SrowY = [4]float32{0, float32(vol.Spacing[1]), 0, float32(vol.Origin[1])}
	hdr.SrowZ = [4]float32{0, 0, float32(vol.Spacing[2]), float32(vol.Origin[2])}
	copy(hdr.Descrip[:], "liverextract")

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write nifti header: %w", err)
	}
	// pad from byte 348 to vox_offset 352
	if _, err := w.Write(make([]byte, 4)); err != nil {
		return fmt.Errorf("write nifti padding: %w", err)
	}

	switch datatype {
	case niftiTypeUint8:
		buf := make([]byte, len(vol.Data))
		for i, s := range vol.Data {
			buf[i] = byte(s)
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write voxel data: %w", err)
		}
	default:
		buf := make([]float32, len(vol.Data))
		for i, s := range vol.Data {
			buf[i] = float32(s)
		}
		if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
			return fmt.Errorf("write voxel data: %w", err)
		}
	}
	return nil
}

// sniffReader lets us peek at the first bytes of a stream to detect gzip
// without losing them.
type sniffReader struct {
	r      io.Reader
	peeked []byte
}

func newSniffReader(r io.Reader) *sniffReader {
	return &sniffReader{r: r}
}

func (s *sniffReader) isGzip() (bool, error) {
	if s.peeked == nil {
		buf := make([]byte, 2)
		n, err := io.ReadFull(s.r, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return false, err
		}
		s.peeked = buf[:n]
	}
	return len(s.peeked) == 2 && s.peeked[0] == 0x1f && s.peeked[1] == 0x8b, nil
}

func (s *sniffReader) Read(p []byte) (int, error) {
	if len(s.peeked) > 0 {
		n := copy(p, s.peeked)
		s.peeked = s.peeked[n:]
		return n, nil
	}
	return s.r.Read(p)
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
