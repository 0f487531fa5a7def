// Package registry holds the static matrix of (library, format) pairs the
// benchmark exercises, each bound to the codec that implements it.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/appnet-org/tabbench/pkg/codec"
)

// Library names a serialization library.
type Library string

const (
	Stdlib   Library = "stdlib"
	Excelize Library = "excelize"
	Arrow    Library = "arrow"
	Goccy    Library = "goccy"
	SQLite   Library = "sqlite"
	Protobuf Library = "protobuf"
	Capnp    Library = "capnp"
	CBOR     Library = "cbor"
)

// Format names an on-disk file format.
type Format string

const (
	CSV        Format = "csv"
	JSON       Format = "json"
	Excel      Format = "excel"
	Parquet    Format = "parquet"
	Feather    Format = "feather"
	SQLiteFile Format = "sqlite"
	ProtoFile  Format = "protobuf"
	CapnpFile  Format = "capnp"
	CBORFile   Format = "cbor"
)

var (
	ErrUnknownLibrary = errors.New("unknown library")
	ErrUnknownFormat  = errors.New("unknown format")
	ErrUnsupported    = errors.New("library does not support format")
)

// Pair is one benchmarked combination.
type Pair struct {
	Library Library
	Format  Format
	Codec   codec.Codec
}

func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Library, p.Format)
}

// Matrix returns every supported pair in a fixed order, grouped by library.
func Matrix() []Pair {
	return []Pair{
		{Stdlib, CSV, codec.StdCSV{}},
		{Stdlib, JSON, codec.StdJSON{}},
		{Excelize, Excel, codec.Excel{}},
		{Arrow, CSV, codec.ArrowCSV{}},
		{Arrow, Parquet, codec.ArrowParquet{}},
		{Arrow, Feather, codec.ArrowFeather{}},
		{Goccy, JSON, codec.GoccyJSON{}},
		{SQLite, SQLiteFile, codec.SQLite{}},
		{Protobuf, ProtoFile, codec.Protobuf{}},
		{Capnp, CapnpFile, codec.Capnp{}},
		{CBOR, CBORFile, codec.CBOR{}},
	}
}

// Libraries lists the distinct libraries in matrix order.
func Libraries() []Library {
	var out []Library
	for _, p := range Matrix() {
		if !slices.Contains(out, p.Library) {
			out = append(out, p.Library)
		}
	}
	return out
}

// Formats lists the distinct formats in matrix order.
func Formats() []Format {
	var out []Format
	for _, p := range Matrix() {
		if !slices.Contains(out, p.Format) {
			out = append(out, p.Format)
		}
	}
	return out
}

// Extension returns the file extension used for format f.
func Extension(f Format) string {
	switch f {
	case Excel:
		return "xlsx"
	case Feather:
		return "arrow"
	}
	return string(f)
}

// Lookup returns the pair for (lib, f).
func Lookup(lib Library, f Format) (Pair, error) {
	if !slices.Contains(Libraries(), lib) {
		return Pair{}, fmt.Errorf("%w: %q", ErrUnknownLibrary, lib)
	}
	if !slices.Contains(Formats(), f) {
		return Pair{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	for _, p := range Matrix() {
		if p.Library == lib && p.Format == f {
			return p, nil
		}
	}
	return Pair{}, fmt.Errorf("%w: %s/%s", ErrUnsupported, lib, f)
}

// Filter returns the matrix restricted to the named libraries and formats.
// An empty list selects everything; unknown names are an error.
func Filter(libs, formats []string) ([]Pair, error) {
	for _, l := range libs {
		if !slices.Contains(Libraries(), Library(l)) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLibrary, l)
		}
	}
	for _, f := range formats {
		if !slices.Contains(Formats(), Format(f)) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}

	var out []Pair
	for _, p := range Matrix() {
		if len(libs) > 0 && !slices.Contains(libs, string(p.Library)) {
			continue
		}
		if len(formats) > 0 && !slices.Contains(formats, string(p.Format)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
