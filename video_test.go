// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"testing"
)

func TestIsVideo(t *testing.T) {
	if !IsVideo(videoSignatureIVF) {
		t.Error("IsVideo should accept DKIF")
	}
	if !IsVideo(videoSignatureCAMV) {
		t.Error("IsVideo should accept CAMV")
	}
	if IsVideo([]byte("NOPE")) {
		t.Error("IsVideo should reject an unknown signature")
	}
}

func TestVideoIVFRoundTrip(t *testing.T) {
	frame0 := []byte{0x00, 0x01, 0x02, 0x9D, 0x01, 0x2A, 0x03}
	frame1 := []byte{0x10, 0x11}

	w := NewWriter()
	w.RawBytes(videoSignatureIVF)
	w.I16(0)
	w.U16(videoHeaderLengthIVF)
	w.RawBytes([]byte("VP80"))
	w.U16(320)
	w.U16(240)
	w.U32(1)
	w.U32(30)
	w.U32(2)
	w.U32(0)
	w.U32(uint32(len(frame0)))
	w.U64(0)
	w.RawBytes(frame0)
	w.U32(uint32(len(frame1)))
	w.U64(1)
	w.RawBytes(frame1)

	data := w.Bytes()
	v, err := ReadVideo(data)
	if err != nil {
		t.Fatal(err)
	}
	if v.Format != VideoIVF || v.CodecFourCC != "VP80" || v.Width != 320 || v.Height != 240 {
		t.Fatalf("doc = %+v", v)
	}
	if len(v.FrameTable) != 2 || v.FrameTable[1].Offset != uint32(len(frame0)) {
		t.Fatalf("frame table = %+v", v.FrameTable)
	}

	out, err := v.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("save() round trip mismatch")
	}
}

func TestVideoCAMVRoundTrip(t *testing.T) {
	frame0 := []byte{0x00, 0x01, 0x02, 0x9D, 0x01, 0x2A, 0x03}
	frame1 := []byte{0x10, 0x11, 0x12}
	frameData := append(append([]byte{}, frame0...), frame1...)

	w := NewWriter()
	w.RawBytes(videoSignatureCAMV)
	w.I16(1)
	w.U16(videoHeaderLengthCAMV)
	w.RawBytes([]byte("VP80"))
	w.U16(320)
	w.U16(240)
	w.F32(33.3)
	w.U32(1)
	w.U32(2)
	w.U32(uint32(videoHeaderLengthCAMV) + uint32(len(frameData)))
	w.U32(2)
	w.U32(uint32(len(frame0)))
	w.U8(0)
	w.RawBytes(frameData)

	offset := uint32(0)
	for i, size := range []uint32{uint32(len(frame0)), uint32(len(frame1))} {
		w.U32(offset + uint32(videoHeaderLengthCAMV))
		w.U32(size)
		if i == 0 {
			w.U8(1) // frame0 carries the 9D 01 2A key-frame marker at bytes 3..5
		} else {
			w.U8(0)
		}
		offset += size
	}

	data := w.Bytes()
	v, err := ReadVideo(data)
	if err != nil {
		t.Fatal(err)
	}
	if v.Format != VideoCAMV || v.FrameTable13Byte {
		t.Fatalf("doc = %+v", v)
	}
	if len(v.FrameTable) != 2 || v.FrameTable[0].Size != uint32(len(frame0)) {
		t.Fatalf("frame table = %+v", v.FrameTable)
	}

	out, err := v.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("save() round trip mismatch")
	}
}
