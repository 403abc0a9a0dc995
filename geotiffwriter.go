package riverdiff

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

const (
	tiffTypeASCII  = 2
	tiffTypeShort  = 3
	tiffTypeLong   = 4
	tiffTypeDouble = 12

	tagImageWidth                = 256
	tagImageLength               = 257
	tagBitsPerSample             = 258
	tagCompression               = 259
	tagPhotometricInterpretation = 262
	tagStripOffsets              = 273
	tagSamplesPerPixel           = 277
	tagRowsPerStrip              = 278
	tagStripByteCounts           = 279
	tagPlanarConfiguration       = 284
	tagSampleFormat              = 339
	tagModelPixelScale           = 33550
	tagModelTiepoint             = 33922
	tagModelTransformation       = 34264
	tagGeoKeyDirectory           = 34735
	tagGeoDoubleParams           = 34736
	tagGeoASCIIParams            = 34737
	tagGDALNoData                = 42113

	targetStripBytes = 8192
)

type geoTIFFWriteOptions struct {
	geoKeys  *GeoKeyDirectory
	compress bool
}

// A GeoTIFFWriteOption sets an option on WriteGeoTIFF.
type GeoTIFFWriteOption func(*geoTIFFWriteOptions)

// WithGeoKeyDirectory sets the GeoKeys written to the file.
func WithGeoKeyDirectory(geoKeys *GeoKeyDirectory) GeoTIFFWriteOption {
	return func(o *geoTIFFWriteOptions) {
		o.geoKeys = geoKeys
	}
}

// WithCompression sets whether strips are deflate compressed. The default is
// true.
func WithCompression(compress bool) GeoTIFFWriteOption {
	return func(o *geoTIFFWriteOptions) {
		o.compress = compress
	}
}

// A tiffEntry is an IFD entry whose value is already encoded.
type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// WriteGeoTIFFFile writes grid to filename as a single band float64 GeoTIFF.
func WriteGeoTIFFFile(filename string, grid *Grid, options ...GeoTIFFWriteOption) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	w := bufio.NewWriter(file)
	if err := WriteGeoTIFF(w, grid, options...); err != nil {
		return err
	}
	return w.Flush()
}

// WriteGeoTIFF writes grid to w as a single band float64 little endian
// GeoTIFF with one IFD. Strips are written first, followed by the IFD.
func WriteGeoTIFF(w io.Writer, grid *Grid, options ...GeoTIFFWriteOption) error {
	o := geoTIFFWriteOptions{
		compress: true,
	}
	for _, option := range options {
		option(&o)
	}

	order := binary.LittleEndian
	rowBytes := 8 * grid.Width
	rowsPerStrip := max(1, min(targetStripBytes/rowBytes, grid.Height))
	stripsPerImage := (grid.Height + rowsPerStrip - 1) / rowsPerStrip

	offset := uint64(8)
	stripOffsets := make([]uint32, 0, stripsPerImage)
	stripByteCounts := make([]uint32, 0, stripsPerImage)
	strips := make([][]byte, 0, stripsPerImage)
	for strip := range stripsPerImage {
		firstRow := strip * rowsPerStrip
		lastRow := min(firstRow+rowsPerStrip, grid.Height)
		raw := make([]byte, 0, (lastRow-firstRow)*rowBytes)
		for _, value := range grid.Data[firstRow*grid.Width : lastRow*grid.Width] {
			raw = order.AppendUint64(raw, math.Float64bits(value))
		}
		data := raw
		if o.compress {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			if _, err := zw.Write(raw); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
			data = buf.Bytes()
		}
		stripOffsets = append(stripOffsets, uint32(offset))
		stripByteCounts = append(stripByteCounts, uint32(len(data)))
		strips = append(strips, data)
		offset += uint64(len(data))
		if offset > math.MaxUint32 {
			return fmt.Errorf("%w: image too large for classic TIFF", errors.ErrUnsupported)
		}
	}

	compression := uint16(compressionNone)
	if o.compress {
		compression = compressionDeflate
	}
	entries := []tiffEntry{
		longEntry(tagImageWidth, uint32(grid.Width)),
		longEntry(tagImageLength, uint32(grid.Height)),
		shortEntry(tagBitsPerSample, 64),
		shortEntry(tagCompression, compression),
		shortEntry(tagPhotometricInterpretation, 1),
		longEntry(tagStripOffsets, stripOffsets...),
		shortEntry(tagSamplesPerPixel, 1),
		longEntry(tagRowsPerStrip, uint32(rowsPerStrip)),
		longEntry(tagStripByteCounts, stripByteCounts...),
		shortEntry(tagPlanarConfiguration, 1),
		shortEntry(tagSampleFormat, sampleFormatFloat),
	}
	t := grid.GeoTransform
	if t.IsRotated() {
		entries = append(entries, doubleEntry(tagModelTransformation,
			t[1], t[2], 0, t[0],
			t[4], t[5], 0, t[3],
			0, 0, 0, 0,
			0, 0, 0, 1,
		))
	} else {
		entries = append(entries,
			doubleEntry(tagModelPixelScale, t[1], -t[5], 0),
			doubleEntry(tagModelTiepoint, 0, 0, 0, t[0], t[3], 0),
		)
	}
	if o.geoKeys != nil {
		entries = append(entries, shortEntry(tagGeoKeyDirectory, pixelIsAreaDirectory(o.geoKeys.Directory)...))
		if len(o.geoKeys.DoubleParams) > 0 {
			entries = append(entries, doubleEntry(tagGeoDoubleParams, o.geoKeys.DoubleParams...))
		}
		if o.geoKeys.ASCIIParams != "" {
			entries = append(entries, asciiEntry(tagGeoASCIIParams, o.geoKeys.ASCIIParams))
		}
	}
	if grid.NoData != nil {
		entries = append(entries, asciiEntry(tagGDALNoData, strconv.FormatFloat(*grid.NoData, 'g', -1, 64)))
	}
	slices.SortFunc(entries, func(a, b tiffEntry) int {
		return int(a.tag) - int(b.tag)
	})

	ifdOffset := offset + offset%2
	ifdSize := uint64(2 + 12*len(entries) + 4)
	overflowOffset := ifdOffset + ifdSize

	var ifd, overflow bytes.Buffer
	ifd.Write(order.AppendUint16(nil, uint16(len(entries))))
	for _, entry := range entries {
		ifd.Write(order.AppendUint16(nil, entry.tag))
		ifd.Write(order.AppendUint16(nil, entry.typ))
		ifd.Write(order.AppendUint32(nil, entry.count))
		if len(entry.data) <= 4 {
			var value [4]byte
			copy(value[:], entry.data)
			ifd.Write(value[:])
			continue
		}
		ifd.Write(order.AppendUint32(nil, uint32(overflowOffset+uint64(overflow.Len()))))
		overflow.Write(entry.data)
		if overflow.Len()%2 != 0 {
			overflow.WriteByte(0)
		}
	}
	ifd.Write(order.AppendUint32(nil, 0))
	if overflowOffset+uint64(overflow.Len()) > math.MaxUint32 {
		return fmt.Errorf("%w: image too large for classic TIFF", errors.ErrUnsupported)
	}

	header := []byte{'I', 'I'}
	header = order.AppendUint16(header, 42)
	header = order.AppendUint32(header, uint32(ifdOffset))
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, strip := range strips {
		if _, err := w.Write(strip); err != nil {
			return err
		}
	}
	if offset%2 != 0 {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	if _, err := w.Write(ifd.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(overflow.Bytes())
	return err
}

// pixelIsAreaDirectory returns a copy of directory with any raster type key
// set to PixelIsArea, because written transforms always refer to pixel
// corners.
func pixelIsAreaDirectory(directory []uint16) []uint16 {
	directory = slices.Clone(directory)
	for i := 4; i+3 < len(directory); i += 4 {
		if GeoKey(directory[i]) == GeoKeyGTRasterType && directory[i+1] == 0 {
			directory[i+3] = 1
		}
	}
	return directory
}

func shortEntry(tag uint16, values ...uint16) tiffEntry {
	data := make([]byte, 0, 2*len(values))
	for _, value := range values {
		data = binary.LittleEndian.AppendUint16(data, value)
	}
	return tiffEntry{tag: tag, typ: tiffTypeShort, count: uint32(len(values)), data: data}
}

func longEntry(tag uint16, values ...uint32) tiffEntry {
	data := make([]byte, 0, 4*len(values))
	for _, value := range values {
		data = binary.LittleEndian.AppendUint32(data, value)
	}
	return tiffEntry{tag: tag, typ: tiffTypeLong, count: uint32(len(values)), data: data}
}

func doubleEntry(tag uint16, values ...float64) tiffEntry {
	data := make([]byte, 0, 8*len(values))
	for _, value := range values {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(value))
	}
	return tiffEntry{tag: tag, typ: tiffTypeDouble, count: uint32(len(values)), data: data}
}

func asciiEntry(tag uint16, s string) tiffEntry {
	data := append([]byte(strings.TrimSuffix(s, "\x00")), 0)
	return tiffEntry{tag: tag, typ: tiffTypeASCII, count: uint32(len(data)), data: data}
}
