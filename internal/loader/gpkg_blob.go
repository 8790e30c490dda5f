package loader

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// envelopeSizes maps the GeoPackage header envelope indicator to the byte
// length of the envelope section.
var envelopeSizes = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

// decodeGPKGGeometry parses a GeoPackage geometry blob: the "GP" binary
// header followed by standard WKB. Returns nil for an empty geometry.
func decodeGPKGGeometry(blob []byte) (geom.T, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, eris.New("gpkg: geometry blob missing GP header")
	}

	flags := blob[3]
	if flags&0x20 != 0 {
		// Extension geometries are not produced by the upstream pipeline.
		return nil, eris.New("gpkg: extended geometry encoding not supported")
	}
	if flags&0x10 != 0 {
		// Empty-geometry flag.
		return nil, nil
	}

	envSize, ok := envelopeSizes[(flags>>1)&0x07]
	if !ok {
		return nil, eris.Errorf("gpkg: invalid envelope indicator %d", (flags>>1)&0x07)
	}

	offset := 8 + envSize
	if len(blob) <= offset {
		return nil, eris.New("gpkg: geometry blob truncated before WKB payload")
	}

	g, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: decode WKB")
	}
	return g, nil
}
