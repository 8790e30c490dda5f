package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// gpkgBlob wraps WKB in a minimal GeoPackage binary header: magic "GP",
// version 0, little-endian flags with no envelope, SRS 4326.
func gpkgBlob(t *testing.T, g geom.T) []byte {
	t.Helper()
	payload, err := wkb.Marshal(g, wkb.NDR)
	require.NoError(t, err)
	header := []byte{'G', 'P', 0, 0x01, 0xE6, 0x10, 0x00, 0x00}
	return append(header, payload...)
}

func TestDecodeGPKGGeometry_Point(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{33.18, 1.92})

	decoded, err := decodeGPKGGeometry(gpkgBlob(t, pt))
	require.NoError(t, err)

	got, ok := decoded.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 33.18, got.X(), 1e-9)
	assert.InDelta(t, 1.92, got.Y(), 1e-9)
}

func TestDecodeGPKGGeometry_Polygon(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 1, 0, 1, 1, 0, 1, 0, 0,
	}, []int{10})

	decoded, err := decodeGPKGGeometry(gpkgBlob(t, poly))
	require.NoError(t, err)
	_, ok := decoded.(*geom.Polygon)
	assert.True(t, ok)
}

func TestDecodeGPKGGeometry_WithEnvelope(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{2, 3})
	payload, err := wkb.Marshal(pt, wkb.NDR)
	require.NoError(t, err)

	// Envelope indicator 1: 32 bytes of XY envelope between header and WKB.
	header := []byte{'G', 'P', 0, 0x03, 0xE6, 0x10, 0x00, 0x00}
	blob := append(header, make([]byte, 32)...)
	blob = append(blob, payload...)

	decoded, err := decodeGPKGGeometry(blob)
	require.NoError(t, err)
	got := decoded.(*geom.Point)
	assert.Equal(t, 2.0, got.X())
}

func TestDecodeGPKGGeometry_Empty(t *testing.T) {
	decoded, err := decodeGPKGGeometry(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	// Empty-geometry flag set.
	blob := []byte{'G', 'P', 0, 0x11, 0xE6, 0x10, 0x00, 0x00}
	decoded, err = decodeGPKGGeometry(blob)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeGPKGGeometry_BadHeader(t *testing.T) {
	_, err := decodeGPKGGeometry([]byte("not a geopackage blob"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GP header")
}

func TestDecodeGPKGGeometry_Truncated(t *testing.T) {
	blob := []byte{'G', 'P', 0, 0x01, 0xE6, 0x10, 0x00, 0x00}
	_, err := decodeGPKGGeometry(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}
