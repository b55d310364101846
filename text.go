// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	textBOMUTF8    = []byte{0xEF, 0xBB, 0xBF}
	textBOMUTF16LE = []byte{0xFF, 0xFE}
)

// TextEncoding is the detected or requested encoding of a TextDocument.
type TextEncoding int

const (
	TextUTF8 TextEncoding = iota
	TextUTF16LE
	TextISO8859_1
)

// TextDocument holds a plain-text file, detected or forced to one of the
// three supported encodings (spec §4.G, "text file").
type TextDocument struct {
	Encoding TextEncoding
	Contents string
}

// ReadText decodes data by sniffing its BOM, falling back to a UTF-8 probe
// and then ISO-8859-1 (spec §4.G).
func ReadText(data []byte) (*TextDocument, error) {
	if len(data) == 0 {
		return &TextDocument{Encoding: TextUTF8}, nil
	}

	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], textBOMUTF8):
		return &TextDocument{Encoding: TextUTF8, Contents: string(data[3:])}, nil

	case len(data) >= 2 && bytes.Equal(data[:2], textBOMUTF16LE):
		contents, err := decodeUTF16LE(data[2:])
		if err != nil {
			return nil, newErrWrap(ErrMalformed, "invalid utf-16le text", err)
		}
		return &TextDocument{Encoding: TextUTF16LE, Contents: contents}, nil

	default:
		if utf8.Valid(data) {
			return &TextDocument{Encoding: TextUTF8, Contents: string(data)}, nil
		}
		contents, err := charmap.ISO8859_1.NewDecoder().String(string(data))
		if err != nil {
			return nil, newErrWrap(ErrMalformed, "text is neither valid utf-8 nor iso-8859-1", err)
		}
		return &TextDocument{Encoding: TextISO8859_1, Contents: contents}, nil
	}
}

func decodeUTF16LE(data []byte) (string, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	return decoder.String(string(data))
}

// Save re-encodes d. UTF-16LE output carries the BOM; UTF-8 and ISO-8859-1
// do not (spec §4.G).
func (d *TextDocument) Save() ([]byte, error) {
	switch d.Encoding {
	case TextUTF8:
		return []byte(d.Contents), nil

	case TextUTF16LE:
		encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
		encoded, err := encoder.String(d.Contents)
		if err != nil {
			return nil, newErrWrap(ErrMalformed, "cannot encode as utf-16le", err)
		}
		out := make([]byte, 0, len(textBOMUTF16LE)+len(encoded))
		out = append(out, textBOMUTF16LE...)
		out = append(out, encoded...)
		return out, nil

	case TextISO8859_1:
		encoded, err := charmap.ISO8859_1.NewEncoder().String(d.Contents)
		if err != nil {
			return nil, newErrWrap(ErrMalformed, "cannot encode as iso-8859-1", err)
		}
		return []byte(encoded), nil

	default:
		return nil, newErr(ErrUnsupportedDataType, "unknown text encoding")
	}
}
