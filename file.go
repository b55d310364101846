// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/saferwall/twpack/log"
)

// FileKind identifies which of this library's self-describing formats a buffer
// decodes as.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindLoc
	KindESF
	KindFastbin
	KindVideoIVF
	KindVideoCAMV
	KindUnitVariant
	KindUIComponent
	KindText
)

func (k FileKind) String() string {
	switch k {
	case KindLoc:
		return "Loc"
	case KindESF:
		return "ESF"
	case KindFastbin:
		return "Fastbin"
	case KindVideoIVF:
		return "VideoIVF"
	case KindVideoCAMV:
		return "VideoCAMV"
	case KindUnitVariant:
		return "UnitVariant"
	case KindUIComponent:
		return "UIComponent"
	case KindText:
		return "Text"
	default:
		return "Unknown"
	}
}

// DetectKind sniffs data's signature to identify which self-describing
// format it holds. DB, AnimTable and MatchedCombat are not self-describing
// (their shape depends on an externally supplied table name and schema) and
// are never returned here; callers that need them invoke ReadDB /
// ReadAnimTable / ReadMatchedCombat directly once the table name is known
// from the pack entry's path.
func DetectKind(data []byte) FileKind {
	switch {
	case IsLoc(data):
		return KindLoc
	case IsESF(data):
		return KindESF
	case IsFastbin(data):
		return KindFastbin
	case len(data) >= 4 && string(data[:4]) == "DKIF":
		return KindVideoIVF
	case len(data) >= 4 && string(data[:4]) == "CAMV":
		return KindVideoCAMV
	case IsUnitVariant(data):
		return KindUnitVariant
	case IsUIComponent(data):
		return KindUIComponent
	default:
		return KindText
	}
}

// Options configures how a mapped file is opened and how the self-describing
// decoders behave once a kind has been sniffed.
type Options struct {
	// Schema resolves field definitions for Loc/DB/AnimTable/MatchedCombat
	// (spec §4.C). Required when the detected or requested kind is one of
	// those; ignored otherwise.
	Schema *Schema

	// ReturnIncomplete decodes a partially readable table row-by-row instead
	// of failing outright (spec §4.C, "return_incomplete mode").
	ReturnIncomplete bool

	// Logger receives recoverable decode anomalies. A nil Logger defaults to
	// a level-filtered stdout logger, matching the teacher's own New/NewBytes
	// default.
	Logger log.Logger
}

func (o *Options) helper() *log.Helper {
	if o == nil || o.Logger == nil {
		return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout),
			log.FilterLevel(log.LevelError)))
	}
	return log.NewHelper(o.Logger)
}

// MappedFile is a read-only memory mapping of a file on disk, exactly as the
// teacher's File.data/File.f pair are used, generalized to any byte-sniffed
// container instead of a single PE layout.
type MappedFile struct {
	data mmap.MMap
	f    *os.File
}

// OpenFile memory-maps path read-only.
func OpenFile(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &MappedFile{data: data, f: f}, nil
}

// Bytes returns the mapped region. It is only valid until Close.
func (m *MappedFile) Bytes() []byte { return m.data }

// Close unmaps and closes the underlying file.
func (m *MappedFile) Close() error {
	if m.data != nil {
		_ = m.data.Unmap()
	}
	if m.f != nil {
		return m.f.Close()
	}
	return nil
}

// Decode sniffs data's kind and decodes it with one of the self-describing
// readers, returning the concrete document alongside the kind that was
// detected. Callers wanting a DB/AnimTable/MatchedCombat table should call
// the dedicated Read* function instead, since those require a table name.
func Decode(data []byte, opts *Options) (interface{}, FileKind, error) {
	kind := DetectKind(data)
	logger := opts.helper()

	switch kind {
	case KindLoc:
		doc, err := ReadLoc(data, optsSchema(opts), optsReturnIncomplete(opts), logger)
		return doc, kind, err
	case KindESF:
		doc, err := ReadESF(data, logger)
		return doc, kind, err
	case KindFastbin:
		doc, err := ReadFastbin(data, logger)
		return doc, kind, err
	case KindVideoIVF, KindVideoCAMV:
		doc, err := ReadVideo(data)
		return doc, kind, err
	case KindUnitVariant:
		doc, err := ReadUnitVariant(data)
		return doc, kind, err
	case KindUIComponent:
		doc, err := ReadUIComponent(data)
		return doc, kind, err
	default:
		doc, err := ReadText(data)
		return doc, KindText, err
	}
}

func optsSchema(opts *Options) *Schema {
	if opts == nil {
		return nil
	}
	return opts.Schema
}

func optsReturnIncomplete(opts *Options) bool {
	if opts == nil {
		return false
	}
	return opts.ReturnIncomplete
}
