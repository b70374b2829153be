package similarity

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// magic identifies the binary matrix format: "KSIM", uint32 n, then n*n float64 row-major,
// all little-endian.
var magic = [4]byte{'K', 'S', 'I', 'M'}

const (
	headerSize = 8
	valueSize  = 8
	// maxSize bounds n read from a header.
	maxSize = 1 << 16
)

// encodedSize is the exact byte length of a binary matrix of size n.
func encodedSize(n int) int64 {
	return headerSize + int64(n)*int64(n)*valueSize
}

// Load reads a matrix from path. Files ending in .csv are parsed as comma-separated rows
// of numbers (e.g. numpy.savetxt output); anything else must be in the binary format.
func Load(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open similarity matrix: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSV(f)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat similarity matrix: %w", err)
	}
	return readBinary(bufio.NewReader(f), info.Size())
}

// Read decodes the binary format from r.
func Read(r io.Reader) (*Matrix, error) {
	return readBinary(r, -1)
}

// readBinary decodes the binary format. When fileSize is known (>= 0) it must match the
// header exactly; otherwise values are read one row at a time so a truncated stream fails
// before memory for the whole matrix is allocated.
func readBinary(r io.Reader, fileSize int64) (*Matrix, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if hdr != magic {
		return nil, fmt.Errorf("not a similarity matrix file (magic %q)", hdr[:])
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read size: %w", err)
	}
	if n > maxSize {
		return nil, fmt.Errorf("similarity matrix size %d exceeds limit %d", n, maxSize)
	}
	size := int(n)
	if fileSize >= 0 && fileSize != encodedSize(size) {
		return nil, fmt.Errorf("%w: file is %d bytes, size %d needs %d", ErrNotSquare, fileSize, size, encodedSize(size))
	}

	// Without a verified length, growth follows the bytes actually read.
	data := []float64{}
	if fileSize >= 0 {
		data = make([]float64, 0, size*size)
	}
	rowBuf := make([]byte, size*valueSize)
	for i := 0; i < size; i++ {
		if _, err := io.ReadFull(r, rowBuf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: truncated at row %d of %d", ErrNotSquare, i, size)
			}
			return nil, fmt.Errorf("read values: %w", err)
		}
		data = appendFloat64s(data, rowBuf)
	}
	var extra [1]byte
	if k, _ := r.Read(extra[:]); k > 0 {
		return nil, fmt.Errorf("%w: trailing data after %d×%d values", ErrNotSquare, size, size)
	}
	return fromData(size, data)
}

// ReadCSV parses one matrix row per line, without a header.
func ReadCSV(r io.Reader) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	rows := make([][]float64, len(lines))
	for i, line := range lines {
		rows[i] = make([]float64, len(line))
		for j, cell := range line {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %d: invalid number %q", i+1, j+1, cell)
			}
			rows[i][j] = v
		}
	}
	return New(rows)
}

// Save writes m to path in the binary format, creating parent directories.
// The file is written to a temporary name and renamed so that a watcher never sees a partial matrix.
func Save(path string, m *Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create matrix dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := Write(w, m); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush matrix: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close matrix file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Write encodes m in the binary format.
func Write(w io.Writer, m *Matrix) error {
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(m.n)); err != nil {
		return fmt.Errorf("write size: %w", err)
	}
	if _, err := w.Write(float64SliceToBytes(m.data)); err != nil {
		return fmt.Errorf("write values: %w", err)
	}
	return nil
}

func float64SliceToBytes(s []float64) []byte {
	out := make([]byte, len(s)*valueSize)
	for i, v := range s {
		binary.LittleEndian.PutUint64(out[i*valueSize:(i+1)*valueSize], math.Float64bits(v))
	}
	return out
}

func appendFloat64s(dst []float64, b []byte) []float64 {
	for i := 0; i+valueSize <= len(b); i += valueSize {
		dst = append(dst, math.Float64frombits(binary.LittleEndian.Uint64(b[i:i+valueSize])))
	}
	return dst
}
