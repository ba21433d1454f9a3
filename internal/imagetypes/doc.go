// Package imagetypes provides shared type definitions and utilities for
// classifying archive entries across the arkview engine.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains primitive types,
// constants, and pure utility functions with no dependencies beyond the
// standard library.
//
// Entries are classified two ways: by extension (cheap, used while iterating
// archive directories) and by signature (magic bytes, used once entry data is
// in hand). An archive is only considered valid when every entry classifies
// as a supported raster image.
package imagetypes
