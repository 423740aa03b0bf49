package demmosaic

import "errors"

var errGeoKeyParse = errors.New("geokey parse error")

type GeoKey uint16

const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026
	GeoKeyGeodeticCRS  GeoKey = 2048
	GeoKeyAngularUnits GeoKey = 2054
)

const (
	gtModelTypeGeographic   = 2
	gtRasterTypePixelIsArea = 1
	epsgWGS84               = 4326
)

// geoKeyDirectory returns the GeoKeyDirectory shorts for a geographic
// WGS 84 raster with area pixels.
func geoKeyDirectory() []uint16 {
	return []uint16{
		1, 1, 0, 3, // version, revision, minor revision, number of keys
		uint16(GeoKeyGTModelType), 0, 1, gtModelTypeGeographic,
		uint16(GeoKeyGTRasterType), 0, 1, gtRasterTypePixelIsArea,
		uint16(GeoKeyGeodeticCRS), 0, 1, epsgWGS84,
	}
}

type ParsedGeoKeys struct {
	Params map[GeoKey]int
}

// ParseGeoKeys parses a GeoKeyDirectory containing only short-valued
// keys, which is all this package writes.
func ParseGeoKeys(directory []uint16) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errGeoKeyParse
	}
	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errGeoKeyParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errGeoKeyParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errGeoKeyParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, errGeoKeyParse
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params: make(map[GeoKey]int),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		numberOfValues := int(keyValues[2])
		if tiffTagLocation != 0 || numberOfValues != 1 {
			return nil, errors.ErrUnsupported
		}
		parsedGeoKeys.Params[key] = int(keyValues[3])
	}
	return parsedGeoKeys, nil
}
