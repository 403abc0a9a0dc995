package riverdiff

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/tiff/lzw"
)

const (
	compressionNone     = 1
	compressionLZW      = 5
	compressionDeflate  = 8
	compressionDeflate2 = 32946

	predictorNone       = 1
	predictorHorizontal = 2

	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3

	rasterPixelIsPoint = 2
)

// A GeoTIFFRaster is the first band of an open GeoTIFF file. Blocks (strips or
// tiles) are decoded on demand and kept in an LRU cache.
type GeoTIFFRaster struct {
	file                *os.File
	byteOrder           binary.ByteOrder
	width               int
	height              int
	tiled               bool
	blockWidth          int
	blockLength         int
	blocksAcross        int
	blocksDown          int
	blockOffsets        []uint64
	blockByteCounts     []uint64
	compression         int
	predictor           int
	sampleFormat        int
	bytesPerSample      int
	samplesPerPixel     int
	planar              bool
	transform           AffineTransform
	noData              *float64
	geoKeys             *GeoKeyDirectory
	crs                 string
	blockCacheSizeBytes int
	blockCache          *lru.Cache[BlockCoord, []float64]
}

// A GeoTIFFOption sets an option on a GeoTIFFRaster.
type GeoTIFFOption func(*GeoTIFFRaster)

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint32    `tiff:"field,tag=256"`
	ImageLength               uint32    `tiff:"field,tag=257"`
	BitsPerSample             []uint16  `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	StripOffsets              []uint64  `tiff:"field,tag=273"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	RowsPerStrip              uint32    `tiff:"field,tag=278"`
	StripByteCounts           []uint64  `tiff:"field,tag=279"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint32    `tiff:"field,tag=322"`
	TileLength                uint32    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              []uint16  `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	ModelTransformationTag    []float64 `tiff:"field,tag=34264"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALMetadata              string    `tiff:"field,tag=42112"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// OpenGeoTIFF opens filename in fsys.
func OpenGeoTIFF(fsys fs.FS, filename string, options ...GeoTIFFOption) (*GeoTIFFRaster, error) {
	var err error
	ok := false

	g := &GeoTIFFRaster{
		blockCacheSizeBytes: 64 << 20, // 64MB.
	}
	for _, option := range options {
		option(g)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	if _, ok := file.(*os.File); !ok {
		_ = file.Close()
		return nil, errors.ErrUnsupported
	}
	g.file = file.(*os.File)
	defer func() {
		if !ok {
			_ = g.file.Close()
		}
	}()

	var magic [2]byte
	if _, err := g.file.ReadAt(magic[:], 0); err != nil {
		return nil, err
	}
	switch string(magic[:]) {
	case "II":
		g.byteOrder = binary.LittleEndian
	case "MM":
		g.byteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("%s: not a TIFF file", filename)
	}

	tiffTIFF, err := tiff.Parse(g.file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}
	if len(tiffTIFF.IFDs()) == 0 {
		return nil, fmt.Errorf("%s: no IFDs", filename)
	}

	// Overviews and masks follow the full resolution image, which is always
	// the first IFD.
	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if err := g.setLayout(&ifd); err != nil {
		return nil, err
	}

	if len(ifd.GeoKeyDirectoryTag) != 0 {
		g.geoKeys = &GeoKeyDirectory{
			Directory:    ifd.GeoKeyDirectoryTag,
			DoubleParams: ifd.GeoDoubleParamsTag,
			ASCIIParams:  ifd.GeoASCIIParamsTag,
		}
	}
	var parsedGeoKeys *ParsedGeoKeys
	if g.geoKeys != nil {
		parsedGeoKeys, err = ParseGeoKeys(g.geoKeys.Directory, g.geoKeys.DoubleParams, []byte(g.geoKeys.ASCIIParams))
		if err != nil {
			return nil, err
		}
		g.crs = parsedGeoKeys.CRS()
	}

	g.transform, err = geoTIFFTransform(&ifd, parsedGeoKeys)
	if err != nil {
		return nil, err
	}

	if noData := strings.TrimRight(strings.TrimSpace(ifd.GDALNoData), "\x00"); noData != "" {
		value, err := strconv.ParseFloat(noData, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: GDAL_NODATA %q: %w", filename, noData, err)
		}
		g.noData = &value
	}

	blockBytes := 8 * g.blockWidth * g.blockLength
	blockCacheCount := max(g.blockCacheSizeBytes/blockBytes, 1)
	g.blockCache, err = lru.New[BlockCoord, []float64](blockCacheCount)
	if err != nil {
		return nil, err
	}

	ok = true
	return g, nil
}

// WithBlockCacheSize sets the size of the decoded block cache in bytes.
func WithBlockCacheSize(blockCacheSize int) GeoTIFFOption {
	return func(g *GeoTIFFRaster) {
		g.blockCacheSizeBytes = blockCacheSize
	}
}

// setLayout sets g's sample encoding and block layout from ifd.
func (g *GeoTIFFRaster) setLayout(ifd *geoTIFFIFD) error {
	g.width = int(ifd.ImageWidth)
	g.height = int(ifd.ImageLength)
	if g.width == 0 || g.height == 0 {
		return fmt.Errorf("%w: empty image", errors.ErrUnsupported)
	}

	g.samplesPerPixel = max(int(ifd.SamplesPerPixel), 1)
	g.planar = ifd.PlanarConfiguration == 2
	g.compression = max(int(ifd.Compression), compressionNone)
	g.predictor = max(int(ifd.Predictor), predictorNone)
	g.sampleFormat = sampleFormatUint
	if len(ifd.SampleFormat) > 0 {
		g.sampleFormat = int(ifd.SampleFormat[0])
	}
	if len(ifd.BitsPerSample) == 0 {
		return fmt.Errorf("%w: missing BitsPerSample", errors.ErrUnsupported)
	}
	bitsPerSample := int(ifd.BitsPerSample[0])
	for _, bits := range ifd.BitsPerSample[1:] {
		if int(bits) != bitsPerSample {
			return fmt.Errorf("%w: mixed BitsPerSample", errors.ErrUnsupported)
		}
	}
	g.bytesPerSample = bitsPerSample / 8

	switch {
	case g.sampleFormat == sampleFormatFloat && (bitsPerSample == 32 || bitsPerSample == 64):
	case (g.sampleFormat == sampleFormatUint || g.sampleFormat == sampleFormatInt) &&
		(bitsPerSample == 8 || bitsPerSample == 16 || bitsPerSample == 32):
	default:
		return fmt.Errorf("%w: sample format %d with %d bits", errors.ErrUnsupported, g.sampleFormat, bitsPerSample)
	}
	switch g.compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionDeflate2:
	default:
		return fmt.Errorf("%w: compression %d", errors.ErrUnsupported, g.compression)
	}
	switch {
	case g.predictor == predictorNone:
	case g.predictor == predictorHorizontal && g.sampleFormat != sampleFormatFloat:
	default:
		return fmt.Errorf("%w: predictor %d", errors.ErrUnsupported, g.predictor)
	}

	if ifd.TileWidth != 0 {
		g.tiled = true
		g.blockWidth = int(ifd.TileWidth)
		g.blockLength = int(ifd.TileLength)
		g.blockOffsets = ifd.TileOffsets
		g.blockByteCounts = ifd.TileByteCounts
	} else {
		g.blockWidth = g.width
		g.blockLength = g.height
		if ifd.RowsPerStrip != 0 {
			g.blockLength = min(int(ifd.RowsPerStrip), g.height)
		}
		g.blockOffsets = ifd.StripOffsets
		g.blockByteCounts = ifd.StripByteCounts
	}
	if g.blockWidth == 0 || g.blockLength == 0 {
		return fmt.Errorf("%w: empty blocks", errors.ErrUnsupported)
	}
	g.blocksAcross = (g.width + g.blockWidth - 1) / g.blockWidth
	g.blocksDown = (g.height + g.blockLength - 1) / g.blockLength

	// Only the first band is read. With planar configuration its blocks come
	// first.
	blocksPerBand := g.blocksAcross * g.blocksDown
	blocksPerImage := blocksPerBand
	if g.planar {
		blocksPerImage *= g.samplesPerPixel
	}
	if len(g.blockByteCounts) != blocksPerImage || len(g.blockOffsets) != blocksPerImage {
		return errors.New("incorrect number of block byte counts or offsets")
	}
	return nil
}

// geoTIFFTransform returns the affine transform described by ifd's model
// tags.
func geoTIFFTransform(ifd *geoTIFFIFD, parsedGeoKeys *ParsedGeoKeys) (AffineTransform, error) {
	var transform AffineTransform
	switch {
	case len(ifd.ModelTransformationTag) == 16:
		m := ifd.ModelTransformationTag
		transform = AffineTransform{m[3], m[0], m[1], m[7], m[4], m[5]}
	case len(ifd.ModelPixelScaleTag) >= 2 && len(ifd.ModelTiepointTag) >= 6:
		scaleX, scaleY := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1]
		i, j := ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1]
		x, y := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]
		transform = NewNorthUpTransform(x-i*scaleX, y+j*scaleY, scaleX, -scaleY)
	default:
		return AffineTransform{}, fmt.Errorf("%w: missing georeferencing", errors.ErrUnsupported)
	}
	if parsedGeoKeys != nil && parsedGeoKeys.Params[GeoKeyGTRasterType] == rasterPixelIsPoint {
		transform[0] -= 0.5*transform[1] + 0.5*transform[2]
		transform[3] -= 0.5*transform[4] + 0.5*transform[5]
	}
	return transform, nil
}

// Close closes g's file.
func (g *GeoTIFFRaster) Close() error {
	return g.file.Close()
}

// Size returns g's width and height.
func (g *GeoTIFFRaster) Size() (int, int) {
	return g.width, g.height
}

// Transform returns g's transform.
func (g *GeoTIFFRaster) Transform() AffineTransform {
	return g.transform
}

// CRS returns g's coordinate reference system as an EPSG code, or the empty
// string if it is not known.
func (g *GeoTIFFRaster) CRS() string {
	return g.crs
}

// GeoKeys returns g's raw GeoKey directory, or nil.
func (g *GeoTIFFRaster) GeoKeys() *GeoKeyDirectory {
	return g.geoKeys
}

// NoData returns g's no-data value, or nil.
func (g *GeoTIFFRaster) NoData() *float64 {
	return g.noData
}

// Values returns the values of cells. It is significantly faster than
// reading cells one at a time because cells are grouped by block.
func (g *GeoTIFFRaster) Values(ctx context.Context, cells []Cell) ([]float64, error) {
	values := make([]float64, len(cells))

	// Group indexes by block coord.
	indexesByBlockCoord := make(map[BlockCoord][]int)
	for index, cell := range cells {
		if !containsCell(g.width, g.height, cell) {
			return nil, &RasterBoundsError{
				Cell:   cell,
				Width:  g.width,
				Height: g.height,
			}
		}
		blockCoord := g.blockCoord(cell)
		indexesByBlockCoord[blockCoord] = append(indexesByBlockCoord[blockCoord], index)
	}

	// Populate values one block at a time.
	for blockCoord, indexes := range indexesByBlockCoord {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blockValues, err := g.getBlockCached(blockCoord)
		if err != nil {
			return nil, err
		}
		for _, index := range indexes {
			values[index] = blockValues[g.blockIndex(cells[index])]
		}
	}

	return values, nil
}

// Grid reads all of g into memory.
func (g *GeoTIFFRaster) Grid(ctx context.Context) (*Grid, error) {
	grid, err := NewGrid(g.transform, g.width, g.height)
	if err != nil {
		return nil, err
	}
	grid.NoData = g.noData
	for r := range g.blocksDown {
		for c := range g.blocksAcross {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			blockCoord := BlockCoord{C: c, R: r}
			blockValues, err := g.getBlock(blockCoord)
			if err != nil {
				return nil, err
			}
			for y := r * g.blockLength; y < min((r+1)*g.blockLength, g.height); y++ {
				for x := c * g.blockWidth; x < min((c+1)*g.blockWidth, g.width); x++ {
					grid.Set(x, y, blockValues[g.blockIndex(Cell{C: x, R: y})])
				}
			}
		}
	}
	return grid, nil
}

// blockCoord returns the coordinate of the block containing cell.
func (g *GeoTIFFRaster) blockCoord(cell Cell) BlockCoord {
	return BlockCoord{
		C: cell.C / g.blockWidth,
		R: cell.R / g.blockLength,
	}
}

// blockIndex returns the index of cell within its block's values.
func (g *GeoTIFFRaster) blockIndex(cell Cell) int {
	return cell.C%g.blockWidth + (cell.R%g.blockLength)*g.blockWidth
}

// blockRows returns the number of rows stored in the block at blockCoord.
// Tiles are always full, but the last strip may be short.
func (g *GeoTIFFRaster) blockRows(blockCoord BlockCoord) int {
	if g.tiled {
		return g.blockLength
	}
	return min(g.blockLength, g.height-blockCoord.R*g.blockLength)
}

// getBlockCached returns the values of the block at blockCoord using g's
// cache.
func (g *GeoTIFFRaster) getBlockCached(blockCoord BlockCoord) ([]float64, error) {
	if blockValues, ok := g.blockCache.Get(blockCoord); ok {
		blockCacheHits.Inc()
		return blockValues, nil
	}
	blockCacheMisses.Inc()
	blockValues, err := g.getBlock(blockCoord)
	if err != nil {
		return nil, err
	}
	if eviction := g.blockCache.Add(blockCoord, blockValues); eviction {
		blockCacheEvictions.Inc()
	}
	return blockValues, nil
}

// getBlock reads, decompresses, and decodes the block at blockCoord.
func (g *GeoTIFFRaster) getBlock(blockCoord BlockCoord) ([]float64, error) {
	compressedData, err := g.getCompressedBlockData(blockCoord)
	if err != nil {
		return nil, err
	}
	rows := g.blockRows(blockCoord)
	blockData, err := g.decompressBlockData(compressedData, rows)
	if err != nil {
		return nil, err
	}
	if g.predictor == predictorHorizontal {
		g.undoHorizontalPredictor(blockData, rows)
	}
	return g.decodeBlockData(blockData, rows), nil
}

// getCompressedBlockData returns the compressed data of the block at
// blockCoord.
func (g *GeoTIFFRaster) getCompressedBlockData(blockCoord BlockCoord) ([]byte, error) {
	blockIndex := blockCoord.C + g.blocksAcross*blockCoord.R
	blockByteCount := g.blockByteCounts[blockIndex]
	blockOffset := g.blockOffsets[blockIndex]
	compressedData := make([]byte, blockByteCount)
	switch n, err := g.file.ReadAt(compressedData, int64(blockOffset)); {
	case err != nil && !(errors.Is(err, io.EOF) && n == int(blockByteCount)):
		return nil, err
	case n != int(blockByteCount):
		return nil, errShortRead
	default:
		return compressedData, nil
	}
}

// pixelBytes returns the number of bytes in one pixel of a block.
func (g *GeoTIFFRaster) pixelBytes() int {
	if g.planar {
		return g.bytesPerSample
	}
	return g.bytesPerSample * g.samplesPerPixel
}

// decompressBlockData decompresses the data of a block with rows rows.
func (g *GeoTIFFRaster) decompressBlockData(compressedData []byte, rows int) ([]byte, error) {
	blockData := make([]byte, g.blockWidth*rows*g.pixelBytes())
	var r io.Reader
	switch g.compression {
	case compressionNone:
		r = bytes.NewReader(compressedData)
	case compressionLZW:
		lzwReader := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer lzwReader.Close()
		r = lzwReader
	case compressionDeflate, compressionDeflate2:
		zlibReader, err := zlib.NewReader(bytes.NewReader(compressedData))
		if err != nil {
			return nil, err
		}
		defer zlibReader.Close()
		r = zlibReader
	}
	if _, err := io.ReadFull(r, blockData); err != nil {
		return nil, err
	}
	return blockData, nil
}

// undoHorizontalPredictor reverses horizontal differencing in place.
func (g *GeoTIFFRaster) undoHorizontalPredictor(blockData []byte, rows int) {
	stride := g.pixelBytes() / g.bytesPerSample
	samplesPerRow := g.blockWidth * stride
	for row := range rows {
		rowStart := row * samplesPerRow
		for i := rowStart + stride; i < rowStart+samplesPerRow; i++ {
			switch g.bytesPerSample {
			case 1:
				blockData[i] += blockData[i-stride]
			case 2:
				prev := g.byteOrder.Uint16(blockData[2*(i-stride):])
				cur := g.byteOrder.Uint16(blockData[2*i:])
				g.byteOrder.PutUint16(blockData[2*i:], cur+prev)
			case 4:
				prev := g.byteOrder.Uint32(blockData[4*(i-stride):])
				cur := g.byteOrder.Uint32(blockData[4*i:])
				g.byteOrder.PutUint32(blockData[4*i:], cur+prev)
			}
		}
	}
}

// decodeBlockData decodes the first band of blockData. Rows missing from a
// short block are left as zero.
func (g *GeoTIFFRaster) decodeBlockData(blockData []byte, rows int) []float64 {
	blockValues := make([]float64, g.blockWidth*g.blockLength)
	pixelBytes := g.pixelBytes()
	for i := range g.blockWidth * rows {
		b := blockData[i*pixelBytes : i*pixelBytes+g.bytesPerSample]
		blockValues[i] = g.decodeSample(b)
	}
	return blockValues
}

func (g *GeoTIFFRaster) decodeSample(b []byte) float64 {
	switch g.sampleFormat {
	case sampleFormatFloat:
		if g.bytesPerSample == 4 {
			return float64(math.Float32frombits(g.byteOrder.Uint32(b)))
		}
		return math.Float64frombits(g.byteOrder.Uint64(b))
	case sampleFormatInt:
		switch g.bytesPerSample {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(g.byteOrder.Uint16(b)))
		default:
			return float64(int32(g.byteOrder.Uint32(b)))
		}
	default:
		switch g.bytesPerSample {
		case 1:
			return float64(b[0])
		case 2:
			return float64(g.byteOrder.Uint16(b))
		default:
			return float64(g.byteOrder.Uint32(b))
		}
	}
}
