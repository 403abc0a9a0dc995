package riverdiff

import (
	"errors"
	"fmt"
)

var errParse = errors.New("parse error")

type GeoKey uint16

const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS   GeoKey = 2048
	GeoKeyGeogCitation  GeoKey = 2049
	GeoKeyGeodeticDatum GeoKey = 2050
	GeoKeyAngularUnits  GeoKey = 2054

	GeoKeyProjectedCRS GeoKey = 3072
	GeoKeyPCSCitation  GeoKey = 3073
	GeoKeyLinearUnits2 GeoKey = 3076

	GeoKeyVertical GeoKey = 4096
)

const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2

	userDefined = 32767

	geoDoubleParamsTag = 34736
	geoASCIIParamsTag  = 34737
)

// A GeoKeyDirectory holds the three GeoTIFF tags that describe a raster's
// coordinate reference system, as stored in the file. It is copied verbatim
// from input rasters to output rasters.
type GeoKeyDirectory struct {
	Directory    []uint16
	DoubleParams []float64
	ASCIIParams  string
}

// NewEPSGGeoKeyDirectory returns a GeoKeyDirectory for the EPSG coordinate
// reference system code. geographic selects between geographic and projected
// coordinate systems.
func NewEPSGGeoKeyDirectory(code int, geographic bool) *GeoKeyDirectory {
	modelType, crsKey := modelTypeProjected, GeoKeyProjectedCRS
	if geographic {
		modelType, crsKey = modelTypeGeographic, GeoKeyGeodeticCRS
	}
	return &GeoKeyDirectory{
		Directory: []uint16{
			1, 1, 0, 3,
			uint16(GeoKeyGTModelType), 0, 1, uint16(modelType),
			uint16(GeoKeyGTRasterType), 0, 1, 1,
			uint16(crsKey), 0, 1, uint16(code),
		},
	}
}

type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errParse
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, errParse
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		numberOfValues := int(keyValues[2])
		index := int(keyValues[3])
		switch tiffTagLocation {
		case 0:
			if numberOfValues != 1 {
				return nil, errParse
			}
			parsedGeoKeys.Params[key] = index
		case geoDoubleParamsTag:
			if numberOfValues != 1 {
				return nil, errors.ErrUnsupported
			}
			if index >= len(doubleParams) {
				return nil, errParse
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[index]
		case geoASCIIParamsTag:
			if index+numberOfValues > len(asciiParams) {
				return nil, errParse
			}
			parsedGeoKeys.ASCIIParams[key] = string(asciiParams[index : index+numberOfValues])
		default:
			return nil, errors.ErrUnsupported
		}
	}
	return parsedGeoKeys, nil
}

// CRS returns the EPSG code of p's coordinate reference system in the form
// "EPSG:n", or the empty string if p does not name one.
func (p *ParsedGeoKeys) CRS() string {
	switch p.Params[GeoKeyGTModelType] {
	case modelTypeGeographic:
		return epsgCRS(p.Params[GeoKeyGeodeticCRS])
	case modelTypeProjected:
		return epsgCRS(p.Params[GeoKeyProjectedCRS])
	}
	if code, ok := p.Params[GeoKeyProjectedCRS]; ok {
		return epsgCRS(code)
	}
	return epsgCRS(p.Params[GeoKeyGeodeticCRS])
}

func epsgCRS(code int) string {
	if code == 0 || code == userDefined {
		return ""
	}
	return fmt.Sprintf("EPSG:%d", code)
}
