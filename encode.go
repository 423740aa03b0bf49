package demmosaic

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// TIFF tags and field types used by the encoder.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagSampleFormat     = 339
	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagGeoKeyDirectory  = 34735

	typeShort  = 3
	typeLong   = 4
	typeASCII  = 2
	typeDouble = 12

	compressionNone    = 1
	compressionLZW     = 5
	compressionDeflate = 8

	sampleFormatFloat = 3
)

// RasterMeta carries the per-raster encoding settings. A zero Envelope
// omits the georeferencing tags.
type RasterMeta struct {
	Envelope     Envelope
	Description  string
	RowsPerStrip int
	Deflate      bool
}

// An ifdEntry is one encoded IFD field. Values longer than four bytes
// are written to an external area whose offset is assigned during
// layout.
type ifdEntry struct {
	tag    uint16
	typ    uint16
	count  uint32
	data   []byte
	offset uint32
}

// WriteRasterFile writes data as a single-channel float32 GeoTIFF at
// path.
func WriteRasterFile(path string, data []float32, width, height int, meta RasterMeta) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := WriteRaster(w, data, width, height, meta); err != nil {
		_ = file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteRaster writes data as a little-endian, strip-organized,
// single-channel IEEE float32 TIFF. Valid values keep their exact bit
// patterns; missing values are written as NaN. Compression is none by
// default or zlib deflate, both lossless.
func WriteRaster(w io.Writer, data []float32, width, height int, meta RasterMeta) error {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return fmt.Errorf("raster size %d != %dx%d", len(data), width, height)
	}

	rowsPerStrip := meta.RowsPerStrip
	if rowsPerStrip <= 0 {
		rowsPerStrip = 64
	}
	rowsPerStrip = min(rowsPerStrip, height)
	stripCount := (height + rowsPerStrip - 1) / rowsPerStrip

	// Encode all strips first; deflate strip sizes are not known until
	// after compression.
	strips := make([][]byte, stripCount)
	for i := range stripCount {
		firstRow := i * rowsPerStrip
		lastRow := min(firstRow+rowsPerStrip, height)
		raw := make([]byte, (lastRow-firstRow)*width*4)
		for j, v := range data[firstRow*width : lastRow*width] {
			binary.LittleEndian.PutUint32(raw[4*j:], math.Float32bits(v))
		}
		if meta.Deflate {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			if _, err := zw.Write(raw); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
			strips[i] = buf.Bytes()
		} else {
			strips[i] = raw
		}
	}

	compression := uint16(compressionNone)
	if meta.Deflate {
		compression = compressionDeflate
	}

	entries := []ifdEntry{
		longEntry(tagImageWidth, uint32(width)),
		longEntry(tagImageLength, uint32(height)),
		shortEntry(tagBitsPerSample, 32),
		shortEntry(tagCompression, compression),
		shortEntry(tagPhotometric, 1),
	}
	if meta.Description != "" {
		entries = append(entries, asciiEntry(tagImageDescription, meta.Description))
	}
	entries = append(entries,
		longArrayEntry(tagStripOffsets, make([]uint32, stripCount)),
		shortEntry(tagSamplesPerPixel, 1),
		longEntry(tagRowsPerStrip, uint32(rowsPerStrip)),
		longArrayEntry(tagStripByteCounts, stripByteCounts(strips)),
		shortEntry(tagSampleFormat, sampleFormatFloat),
	)
	if env := meta.Envelope; env.LatMax > env.LatMin && env.LonMax > env.LonMin {
		entries = append(entries,
			doubleArrayEntry(tagModelPixelScale, []float64{
				(env.LonMax - env.LonMin) / float64(width),
				(env.LatMax - env.LatMin) / float64(height),
				0,
			}),
			doubleArrayEntry(tagModelTiepoint, []float64{0, 0, 0, env.LonMin, env.LatMax, 0}),
			shortArrayEntry(tagGeoKeyDirectory, geoKeyDirectory()),
		)
	}

	// Layout: header, IFD, external value areas, then strip data.
	ifdOffset := uint32(8)
	cursor := ifdOffset + 2 + 12*uint32(len(entries)) + 4
	for i := range entries {
		if len(entries[i].data) > 4 {
			entries[i].offset = cursor
			cursor += uint32(len(entries[i].data))
			if cursor%2 == 1 {
				cursor++
			}
		}
	}
	stripOffsets := make([]uint32, stripCount)
	for i, strip := range strips {
		stripOffsets[i] = cursor
		cursor += uint32(len(strip))
		if cursor%2 == 1 {
			cursor++
		}
	}
	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			entries[i].data = encodeLongs(stripOffsets)
		}
	}

	// Header.
	header := make([]byte, 8)
	header[0], header[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(header[2:], 42)
	binary.LittleEndian.PutUint32(header[4:], ifdOffset)
	out := &countingWriter{w: w}
	if _, err := out.Write(header); err != nil {
		return err
	}

	// IFD.
	var ifd bytes.Buffer
	entryBytes := make([]byte, 12)
	binary.Write(&ifd, binary.LittleEndian, uint16(len(entries)))
	for _, entry := range entries {
		binary.LittleEndian.PutUint16(entryBytes[0:], entry.tag)
		binary.LittleEndian.PutUint16(entryBytes[2:], entry.typ)
		binary.LittleEndian.PutUint32(entryBytes[4:], entry.count)
		for i := 8; i < 12; i++ {
			entryBytes[i] = 0
		}
		if len(entry.data) > 4 {
			binary.LittleEndian.PutUint32(entryBytes[8:], entry.offset)
		} else {
			copy(entryBytes[8:], entry.data)
		}
		ifd.Write(entryBytes)
	}
	binary.Write(&ifd, binary.LittleEndian, uint32(0)) // no next IFD
	if _, err := out.Write(ifd.Bytes()); err != nil {
		return err
	}

	// External value areas, in the order offsets were assigned.
	for _, entry := range entries {
		if len(entry.data) > 4 {
			if err := out.writePadded(entry.data); err != nil {
				return err
			}
		}
	}

	// Strip data.
	for _, strip := range strips {
		if err := out.writePadded(strip); err != nil {
			return err
		}
	}
	return nil
}

// A countingWriter pads written blocks to even offsets, as TIFF value
// alignment requires.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (c *countingWriter) writePadded(p []byte) error {
	if _, err := c.Write(p); err != nil {
		return err
	}
	if c.n%2 == 1 {
		if _, err := c.Write([]byte{0}); err != nil {
			return err
		}
	}
	return nil
}

func shortEntry(tag uint16, v uint16) ifdEntry {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, v)
	return ifdEntry{tag: tag, typ: typeShort, count: 1, data: data}
}

func shortArrayEntry(tag uint16, values []uint16) ifdEntry {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(values)), data: data}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return ifdEntry{tag: tag, typ: typeLong, count: 1, data: data}
}

func longArrayEntry(tag uint16, values []uint32) ifdEntry {
	return ifdEntry{tag: tag, typ: typeLong, count: uint32(len(values)), data: encodeLongs(values)}
}

func doubleArrayEntry(tag uint16, values []float64) ifdEntry {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(values)), data: data}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	data := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

func encodeLongs(values []uint32) []byte {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return data
}

func stripByteCounts(strips [][]byte) []uint32 {
	counts := make([]uint32, len(strips))
	for i, strip := range strips {
		counts[i] = uint32(len(strip))
	}
	return counts
}

// WriteNPY writes data as a NumPy .npy version 1.0 array of dtype <f4
// and shape (height, width), C order.
func WriteNPY(w io.Writer, data []float32, width, height int) error {
	if len(data) != width*height {
		return fmt.Errorf("raster size %d != %dx%d", len(data), width, height)
	}
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", height, width)
	// Total header length, including magic and the trailing newline,
	// must be a multiple of 64.
	headerLen := len(dict) + 1
	total := 10 + headerLen
	if pad := total % 64; pad != 0 {
		headerLen += 64 - pad
	}
	header := make([]byte, 10+headerLen)
	copy(header, "\x93NUMPY\x01\x00")
	binary.LittleEndian.PutUint16(header[8:], uint16(headerLen))
	copy(header[10:], dict)
	for i := 10 + len(dict); i < len(header)-1; i++ {
		header[i] = ' '
	}
	header[len(header)-1] = '\n'
	if _, err := w.Write(header); err != nil {
		return err
	}
	raw := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	_, err := w.Write(raw)
	return err
}
