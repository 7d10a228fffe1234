// Package nifti loads NIfTI-1 volumes: it parses the 348-byte header,
// decodes the voxel buffer, builds the voxel-to-world affine from the
// sform or qform fields and canonicalizes the array to the closest
// axis-aligned orientation before handing the result to the volume core.
package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"niftiview/pkg/volume"
)

const (
	headerSize = 348

	magicSingle = "n+1" // header and voxels in one .nii file
	magicPair   = "ni1" // header-only .hdr of a .hdr/.img pair
)

// NIfTI-1 datatype codes supported by the loader.
const (
	typeUint8   = 2
	typeInt16   = 4
	typeInt32   = 8
	typeFloat32 = 16
	typeFloat64 = 64
	typeUint16  = 512
)

// header mirrors the packed NIfTI-1 header layout. Field order and sizes
// must not change; binary.Read decodes the struct directly against the
// 348-byte wire format.
type header struct {
	SizeofHdr    int32
	DataTypeName [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte

	Dim                          [8]int16
	IntentP1, IntentP2, IntentP3 float32
	IntentCode                   int16
	Datatype                     int16
	Bitpix                       int16
	SliceStart                   int16
	Pixdim                       [8]float32
	VoxOffset                    float32
	SclSlope                     float32
	SclInter                     float32
	SliceEnd                     int16
	SliceCode                    byte
	XyztUnits                    byte
	CalMax                       float32
	CalMin                       float32
	SliceDuration                float32
	Toffset                      float32
	Glmax                        int32
	Glmin                        int32

	Descrip [80]byte
	AuxFile [24]byte

	QformCode                    int16
	SformCode                    int16
	QuaternB, QuaternC, QuaternD float32
	QoffsetX, QoffsetY, QoffsetZ float32
	SrowX                        [4]float32
	SrowY                        [4]float32
	SrowZ                        [4]float32

	IntentName [16]byte
	Magic      [4]byte
}

// Load reads a .nii or .nii.gz file and returns a canonicalized Volume.
func Load(path string) (*volume.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var r io.Reader = br
	if head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream of %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	vol, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return vol, nil
}

// Decode reads a NIfTI-1 stream (header plus voxels) and returns a
// canonicalized Volume.
func Decode(r io.Reader) (*volume.Volume, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	order, err := detectByteOrder(raw)
	if err != nil {
		return nil, err
	}
	var hdr header
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}

	magic := string(hdr.Magic[:3])
	if magic != magicSingle {
		if magic == magicPair {
			return nil, fmt.Errorf("header-only %q files need their .img companion, which is not supported", magicPair)
		}
		return nil, fmt.Errorf("bad magic %q, not a NIfTI-1 stream", magic)
	}
	if hdr.Dim[0] < 3 {
		return nil, fmt.Errorf("volume has %d dimensions, need at least 3", hdr.Dim[0])
	}

	nx, ny, nz := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("non-positive dimensions (%d,%d,%d)", nx, ny, nz)
	}
	for d := int16(4); d <= hdr.Dim[0] && d < 8; d++ {
		if hdr.Dim[d] > 1 {
			return nil, fmt.Errorf("multi-volume file (dim[%d]=%d); only single 3D volumes are supported", d, hdr.Dim[d])
		}
	}

	// The header is followed by vox_offset-348 bytes of extensions.
	if skip := int64(hdr.VoxOffset) - headerSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("skipping header extensions: %w", err)
		}
	}

	data, typeName, err := readVoxels(r, order, hdr.Datatype, nx*ny*nz)
	if err != nil {
		return nil, err
	}
	applyScaling(data, float64(hdr.SclSlope), float64(hdr.SclInter))

	data, shape, affine, err := canonicalize(data, [3]int{nx, ny, nz}, affineFromHeader(&hdr))
	if err != nil {
		return nil, fmt.Errorf("canonicalizing orientation: %w", err)
	}

	vol, err := volume.New(data, shape[0], shape[1], shape[2], canonicalSpacing(affine), affine)
	if err != nil {
		return nil, err
	}
	vol.SourceType = typeName
	return vol, nil
}

// detectByteOrder probes dim[0] at offset 40, which must be 1..7 in the
// file's native order.
func detectByteOrder(raw []byte) (binary.ByteOrder, error) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		dim0 := int16(order.Uint16(raw[40:42]))
		if dim0 >= 1 && dim0 <= 7 {
			return order, nil
		}
	}
	return nil, fmt.Errorf("cannot determine byte order (dim[0] invalid in both orders)")
}

// readVoxels decodes count scalars of the given datatype into float64.
func readVoxels(r io.Reader, order binary.ByteOrder, datatype int16, count int) ([]float64, string, error) {
	data := make([]float64, count)
	switch datatype {
	case typeUint8:
		buf := make([]byte, count)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, "", fmt.Errorf("reading uint8 voxels: %w", err)
		}
		for n, v := range buf {
			data[n] = float64(v)
		}
		return data, "uint8", nil
	case typeInt16:
		buf := make([]int16, count)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, "", fmt.Errorf("reading int16 voxels: %w", err)
		}
		for n, v := range buf {
			data[n] = float64(v)
		}
		return data, "int16", nil
	case typeUint16:
		buf := make([]uint16, count)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, "", fmt.Errorf("reading uint16 voxels: %w", err)
		}
		for n, v := range buf {
			data[n] = float64(v)
		}
		return data, "uint16", nil
	case typeInt32:
		buf := make([]int32, count)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, "", fmt.Errorf("reading int32 voxels: %w", err)
		}
		for n, v := range buf {
			data[n] = float64(v)
		}
		return data, "int32", nil
	case typeFloat32:
		buf := make([]float32, count)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, "", fmt.Errorf("reading float32 voxels: %w", err)
		}
		for n, v := range buf {
			data[n] = float64(v)
		}
		return data, "float32", nil
	case typeFloat64:
		if err := binary.Read(r, order, data); err != nil {
			return nil, "", fmt.Errorf("reading float64 voxels: %w", err)
		}
		return data, "float64", nil
	}
	return nil, "", fmt.Errorf("unsupported NIfTI datatype code %d", datatype)
}

// applyScaling applies the header's scl_slope/scl_inter intensity scaling.
// A zero slope means "no scaling" per the standard.
func applyScaling(data []float64, slope, inter float64) {
	if slope == 0 || (slope == 1 && inter == 0) {
		return
	}
	for n := range data {
		data[n] = data[n]*slope + inter
	}
}

// affineFromHeader builds the voxel-to-world transform, preferring the
// sform, then the qform quaternion, then plain pixdim scaling.
func affineFromHeader(hdr *header) *mat.Dense {
	if hdr.SformCode > 0 {
		return mat.NewDense(4, 4, []float64{
			float64(hdr.SrowX[0]), float64(hdr.SrowX[1]), float64(hdr.SrowX[2]), float64(hdr.SrowX[3]),
			float64(hdr.SrowY[0]), float64(hdr.SrowY[1]), float64(hdr.SrowY[2]), float64(hdr.SrowY[3]),
			float64(hdr.SrowZ[0]), float64(hdr.SrowZ[1]), float64(hdr.SrowZ[2]), float64(hdr.SrowZ[3]),
			0, 0, 0, 1,
		})
	}
	if hdr.QformCode > 0 {
		return qformAffine(hdr)
	}
	// No orientation info; scanner-axis-aligned with pixdim scaling.
	return mat.NewDense(4, 4, []float64{
		spacingOrDefault(hdr.Pixdim[1]), 0, 0, 0,
		0, spacingOrDefault(hdr.Pixdim[2]), 0, 0,
		0, 0, spacingOrDefault(hdr.Pixdim[3]), 0,
		0, 0, 0, 1,
	})
}

// qformAffine reconstructs the rotation from the stored quaternion, scales
// by pixdim and applies the qfac handedness flip to the z column, per the
// NIfTI-1 standard.
func qformAffine(hdr *header) *mat.Dense {
	b := float64(hdr.QuaternB)
	c := float64(hdr.QuaternC)
	d := float64(hdr.QuaternD)
	a := 1 - b*b - c*c - d*d
	if a < 0 {
		a = 0
	}
	a = math.Sqrt(a)

	r := [3][3]float64{
		{a*a + b*b - c*c - d*d, 2 * (b*c - a*d), 2 * (b*d + a*c)},
		{2 * (b*c + a*d), a*a + c*c - b*b - d*d, 2 * (c*d - a*b)},
		{2 * (b*d - a*c), 2 * (c*d + a*b), a*a + d*d - b*b - c*c},
	}

	qfac := 1.0
	if hdr.Pixdim[0] < 0 {
		qfac = -1
	}
	sx := spacingOrDefault(hdr.Pixdim[1])
	sy := spacingOrDefault(hdr.Pixdim[2])
	sz := spacingOrDefault(hdr.Pixdim[3]) * qfac

	return mat.NewDense(4, 4, []float64{
		r[0][0] * sx, r[0][1] * sy, r[0][2] * sz, float64(hdr.QoffsetX),
		r[1][0] * sx, r[1][1] * sy, r[1][2] * sz, float64(hdr.QoffsetY),
		r[2][0] * sx, r[2][1] * sy, r[2][2] * sz, float64(hdr.QoffsetZ),
		0, 0, 0, 1,
	})
}

func spacingOrDefault(pixdim float32) float64 {
	s := math.Abs(float64(pixdim))
	if s == 0 {
		return 1
	}
	return s
}

// canonicalSpacing recovers per-axis spacing as the column norms of the
// canonicalized affine.
func canonicalSpacing(affine *mat.Dense) [3]float64 {
	var spacing [3]float64
	for axis := 0; axis < 3; axis++ {
		s := math.Hypot(affine.At(0, axis), math.Hypot(affine.At(1, axis), affine.At(2, axis)))
		if s == 0 {
			s = 1
		}
		spacing[axis] = s
	}
	return spacing
}

