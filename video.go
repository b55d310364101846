// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"fmt"
)

var (
	videoSignatureIVF  = []byte("DKIF")
	videoSignatureCAMV = []byte("CAMV")
)

const (
	videoKeyFrameMarkerByte0 = 0x9D
	videoKeyFrameMarkerByte1 = 0x01
	videoKeyFrameMarkerByte2 = 0x2A

	videoHeaderLengthCAMV = 41
	videoHeaderLengthIVF  = 32
)

// VideoFormat distinguishes the two CA_VP8 container framings.
type VideoFormat int

const (
	VideoIVF VideoFormat = iota
	VideoCAMV
)

// VideoFrame locates one VP8 frame inside FrameData.
type VideoFrame struct {
	Offset uint32
	Size   uint32
}

// VideoDocument holds a decoded CA_VP8 container: a VP8 payload carried
// opaque inside either the standard IVF framing or CA's custom CAMV
// framing (spec §4.G).
type VideoDocument struct {
	Format      VideoFormat
	Version     int16
	CodecFourCC string
	Width       uint16
	Height      uint16
	NumFrames   uint32

	// IVF-only timebase (framerate = TimebaseDenominator / TimebaseNumerator).
	TimebaseNumerator   uint32
	TimebaseDenominator uint32

	// CAMV-only frame interval in milliseconds.
	MsPerFrame float32

	// FrameTable13Byte records whether the CAMV frame table read used the
	// 13-byte-per-entry variant; Save always writes the 9-byte variant
	// regardless (spec §8, "only 9-byte should be written on new files").
	FrameTable13Byte bool

	FrameTable []VideoFrame
	FrameData  []byte
}

// IsVideo reports whether data opens with a recognised video signature.
func IsVideo(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return bytes.Equal(data[:4], videoSignatureIVF) || bytes.Equal(data[:4], videoSignatureCAMV)
}

// ReadVideo decodes a CA_VP8 container, dispatching on its signature.
func ReadVideo(data []byte) (*VideoDocument, error) {
	if len(data) < 4 {
		return nil, newErr(ErrNeedMoreBytes, "video signature truncated")
	}
	switch {
	case bytes.Equal(data[:4], videoSignatureIVF):
		return readVideoIVF(data)
	case bytes.Equal(data[:4], videoSignatureCAMV):
		return readVideoCAMV(data)
	default:
		return nil, newErr(ErrUnsupportedSignature, "not a recognised video container")
	}
}

func readVideoIVF(data []byte) (*VideoDocument, error) {
	r := NewReader(data)
	if _, err := r.Bytes(4); err != nil {
		return nil, err
	}
	v := &VideoDocument{Format: VideoIVF}

	version, err := r.I16()
	if err != nil {
		return nil, err
	}
	v.Version = version
	if _, err := r.U16(); err != nil { // header length, recomputed on save
		return nil, err
	}
	fourCC, err := r.Bytes(4)
	if err != nil {
		return nil, err
	}
	v.CodecFourCC = string(fourCC)
	if v.Width, err = r.U16(); err != nil {
		return nil, err
	}
	if v.Height, err = r.U16(); err != nil {
		return nil, err
	}
	if v.TimebaseDenominator, err = r.U32(); err != nil {
		return nil, err
	}
	if v.TimebaseNumerator, err = r.U32(); err != nil {
		return nil, err
	}
	if v.NumFrames, err = r.U32(); err != nil {
		return nil, err
	}
	if _, err := r.U32(); err != nil { // unused
		return nil, err
	}

	var frameOffset uint32
	for i := uint32(0); i < v.NumFrames; i++ {
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		if _, err := r.U64(); err != nil { // presentation timestamp, not preserved
			return nil, err
		}
		frameBytes, err := r.Bytes(size)
		if err != nil {
			return nil, err
		}
		v.FrameTable = append(v.FrameTable, VideoFrame{Offset: frameOffset, Size: size})
		v.FrameData = append(v.FrameData, frameBytes...)
		frameOffset += size
	}

	return v, nil
}

func readVideoCAMV(data []byte) (*VideoDocument, error) {
	r := NewReader(data)
	if _, err := r.Bytes(4); err != nil {
		return nil, err
	}
	v := &VideoDocument{Format: VideoCAMV}

	version, err := r.I16()
	if err != nil {
		return nil, err
	}
	v.Version = version
	if _, err := r.U16(); err != nil { // header length
		return nil, err
	}
	fourCC, err := r.Bytes(4)
	if err != nil {
		return nil, err
	}
	v.CodecFourCC = string(fourCC)
	if v.Width, err = r.U16(); err != nil {
		return nil, err
	}
	if v.Height, err = r.U16(); err != nil {
		return nil, err
	}
	if v.MsPerFrame, err = r.F32(); err != nil {
		return nil, err
	}
	if _, err := r.U32(); err != nil { // mystery field
		return nil, err
	}
	if _, err := r.U32(); err != nil { // num_frames copy
		return nil, err
	}
	offsetFrameTable, err := r.U32()
	if err != nil {
		return nil, err
	}
	if v.NumFrames, err = r.U32(); err != nil {
		return nil, err
	}
	if _, err := r.U32(); err != nil { // largest frame
		return nil, err
	}
	if _, err := r.U8(); err != nil { // final header byte
		return nil, err
	}

	frameDataEnd := offsetFrameTable
	frameData, err := r.Bytes(frameDataEnd - uint32(videoHeaderLengthCAMV))
	if err != nil {
		return nil, err
	}
	v.FrameData = frameData

	tail := data[offsetFrameTable:]
	v.FrameTable13Byte = len(tail)%13 == 0 && uint32(len(tail)/13) == v.NumFrames

	if err := r.Seek(offsetFrameTable); err != nil {
		return nil, err
	}
	var frameOffset uint32
	for i := uint32(0); i < v.NumFrames; i++ {
		if _, err := r.U32(); err != nil { // real frame offset, redundant with running total
			return nil, err
		}
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		if v.FrameTable13Byte {
			if _, err := r.U32(); err != nil { // unknown
				return nil, err
			}
		}
		if _, err := r.U8(); err != nil { // flags / key-frame marker
			return nil, err
		}
		v.FrameTable = append(v.FrameTable, VideoFrame{Offset: frameOffset, Size: size})
		frameOffset += size
	}

	return v, nil
}

// Save re-encodes v in its original format.
func (v *VideoDocument) Save() ([]byte, error) {
	switch v.Format {
	case VideoIVF:
		return v.saveIVF(), nil
	case VideoCAMV:
		return v.saveCAMV(), nil
	default:
		return nil, newErr(ErrUnsupportedDataType, fmt.Sprintf("unknown video format %d", v.Format))
	}
}

func (v *VideoDocument) saveIVF() []byte {
	w := NewWriter()
	w.RawBytes(videoSignatureIVF)
	w.I16(v.Version)
	w.U16(videoHeaderLengthIVF)
	w.RawBytes([]byte(v.CodecFourCC))
	w.U16(v.Width)
	w.U16(v.Height)
	w.U32(v.TimebaseDenominator)
	w.U32(v.TimebaseNumerator)
	w.U32(v.NumFrames)
	w.U32(0)

	for i, frame := range v.FrameTable {
		data := v.FrameData[frame.Offset : frame.Offset+frame.Size]
		w.U32(frame.Size)
		w.U64(uint64(i))
		w.RawBytes(data)
	}
	return w.Bytes()
}

func (v *VideoDocument) saveCAMV() []byte {
	w := NewWriter()
	w.RawBytes(videoSignatureCAMV)
	w.I16(v.Version)
	w.U16(videoHeaderLengthCAMV)
	w.RawBytes([]byte(v.CodecFourCC))
	w.U16(v.Width)
	w.U16(v.Height)
	w.F32(v.MsPerFrame)
	w.U32(1)
	w.U32(v.NumFrames)

	var totalSize uint32
	var largest uint32
	for _, frame := range v.FrameTable {
		totalSize += frame.Size
		if frame.Size > largest {
			largest = frame.Size
		}
	}
	w.U32(uint32(videoHeaderLengthCAMV) + totalSize)
	w.U32(v.NumFrames)
	w.U32(largest)
	w.U8(0)

	w.RawBytes(v.FrameData)

	// Always write the 9-byte-per-entry frame table on encode (spec §8).
	var offset uint32
	for _, frame := range v.FrameTable {
		data := v.FrameData[offset : offset+frame.Size]
		isKeyFrame := byte(0)
		if len(data) >= 6 &&
			data[3] == videoKeyFrameMarkerByte0 && data[4] == videoKeyFrameMarkerByte1 && data[5] == videoKeyFrameMarkerByte2 {
			isKeyFrame = 1
		}
		w.U32(offset + uint32(videoHeaderLengthCAMV))
		w.U32(frame.Size)
		w.U8(isKeyFrame)
		offset += frame.Size
	}

	return w.Bytes()
}
