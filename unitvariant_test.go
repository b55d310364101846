// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"testing"
)

func TestIsUnitVariant(t *testing.T) {
	if !IsUnitVariant(unitVariantSignature) {
		t.Error("IsUnitVariant should accept VRNT")
	}
	if IsUnitVariant([]byte("NOPE")) {
		t.Error("IsUnitVariant should reject an unknown signature")
	}
}

func buildUnitVariant(t *testing.T, version uint32) []byte {
	t.Helper()
	headerSize := unitVariantHeaderSize(version)

	catBuf := NewWriter()
	if err := catBuf.StringU16Padded("infantry", unitVariantNamePadding/2); err != nil {
		t.Fatal(err)
	}
	catBuf.U64(7)
	catBuf.U32(1)
	catBuf.U32(0)

	eqBuf := NewWriter()
	if err := eqBuf.StringU16Padded("helmet", unitVariantNamePadding/2); err != nil {
		t.Fatal(err)
	}
	if err := eqBuf.StringU16Padded("shield", unitVariantNamePadding/2); err != nil {
		t.Fatal(err)
	}
	eqBuf.RawBytes([]byte{0, 0})

	w := NewWriter()
	w.RawBytes(unitVariantSignature)
	w.U32(version)
	w.U32(1)
	w.U32(headerSize)
	w.U32(headerSize + catBuf.Len())
	if version == 2 {
		w.U32(42)
	}
	w.RawBytes(catBuf.Bytes())
	w.RawBytes(eqBuf.Bytes())
	return w.Bytes()
}

func TestUnitVariantRoundTripV1(t *testing.T) {
	data := buildUnitVariant(t, 1)
	doc, err := ReadUnitVariant(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Categories) != 1 || doc.Categories[0].Name != "infantry" || doc.Categories[0].ID != 7 {
		t.Fatalf("categories = %+v", doc.Categories)
	}
	if len(doc.Categories[0].Equipments) != 1 ||
		doc.Categories[0].Equipments[0].Name1 != "helmet" ||
		doc.Categories[0].Equipments[0].Name2 != "shield" {
		t.Fatalf("equipments = %+v", doc.Categories[0].Equipments)
	}

	out, err := doc.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("save() round trip mismatch")
	}
}

func TestUnitVariantRoundTripV2(t *testing.T) {
	data := buildUnitVariant(t, 2)
	doc, err := ReadUnitVariant(data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.UnknownOne != 42 {
		t.Fatalf("unknown_1 = %d", doc.UnknownOne)
	}

	out, err := doc.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("save() round trip mismatch")
	}
}

func TestUnitVariantUnsupportedVersion(t *testing.T) {
	w := NewWriter()
	w.RawBytes(unitVariantSignature)
	w.U32(3)
	w.U32(0)
	w.U32(20)
	w.U32(20)

	_, err := ReadUnitVariant(w.Bytes())
	if err == nil {
		t.Fatal("expected an unsupported-version error")
	}
	kind, ok := Kind(err)
	if !ok || kind != ErrUnsupportedVersion {
		t.Errorf("Kind(err) = %v, %v, want ErrUnsupportedVersion", kind, ok)
	}
}
