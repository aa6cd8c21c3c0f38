// Package domain models the urban heat viewer: catalog layers, color
// palettes, map geometry, pixel values and activity events.
//
// # Data Source
//
// The catalog endpoint returns a JSON array of raster datasets:
//
//	[{"filename": "nyc_2023_TempF.pmtiles", "s3_url": "https://.../nyc_2023_TempF.pmtiles", ...}]
//
// Only filename and s3_url are read. Each s3_url points at a PMTiles v3
// archive of 512×512 raster tiles, read with HTTP range requests.
//
// # Band Encoding
//
// Band 1 carries the measured scalar as an 8-bit channel. The map widget
// sees it normalized to [0, 1], so the style expression rescales it with
// band × 255 ÷ 1 before interpolating. Server-side reads skip the
// normalization and report the 8-bit value directly; both give the same
// number.
//
// # Palettes
//
// Two ramps ship built in:
//
//	tempf_colors     50..130 °F in 10° steps, magma-like
//	relative_colors  -5..10, diverging around 0
//
// A dataset whose URL contains the palette marker ("Relative" unless
// configured) is drawn with the marked ramp, every other dataset with the
// default one. Thresholds must be strictly increasing; values outside a
// ramp clamp to its end colors.
//
// # Geometry
//
// Views use Web Mercator with zoom levels defined on a 256-px grid, as the
// base OSM layer does. A 512-px overlay grid therefore displays tiles one
// zoom level below the view zoom. See [TileZoom] and [TilePosition].
package domain
