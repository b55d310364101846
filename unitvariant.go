// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import "fmt"

var unitVariantSignature = []byte("VRNT")

const unitVariantNamePadding = 512

// UnitVariantEquipment is a pair of padded names attached to a category.
type UnitVariantEquipment struct {
	Name1 string
	Name2 string
}

// UnitVariantCategory groups a list of equipments under an identified name.
type UnitVariantCategory struct {
	Name       string
	ID         uint64
	Equipments []UnitVariantEquipment
}

// UnitVariantDocument holds an entire VRNT unit-variant blob in memory.
type UnitVariantDocument struct {
	Version    uint32
	UnknownOne uint32
	Categories []UnitVariantCategory
}

// IsUnitVariant reports whether data opens with the VRNT signature.
func IsUnitVariant(data []byte) bool {
	if len(data) < len(unitVariantSignature) {
		return false
	}
	for i, b := range unitVariantSignature {
		if data[i] != b {
			return false
		}
	}
	return true
}

func unitVariantHeaderSize(version uint32) uint32 {
	if version == 2 {
		return 24
	}
	return 20
}

// ReadUnitVariant decodes a VRNT blob (spec §4.G, "unit variant").
func ReadUnitVariant(data []byte) (*UnitVariantDocument, error) {
	r := NewReader(data)
	sig, err := r.Bytes(uint32(len(unitVariantSignature)))
	if err != nil {
		return nil, err
	}
	for i, b := range unitVariantSignature {
		if sig[i] != b {
			return nil, newErr(ErrUnsupportedSignature, "not a VRNT unit variant")
		}
	}

	doc := &UnitVariantDocument{}
	if doc.Version, err = r.U32(); err != nil {
		return nil, err
	}
	if doc.Version != 1 && doc.Version != 2 {
		return nil, newErr(ErrUnsupportedVersion, fmt.Sprintf("unit variant version %d is not supported", doc.Version))
	}
	categoryCount, err := r.U32()
	if err != nil {
		return nil, err
	}
	if _, err := r.U32(); err != nil { // categories offset, recomputed on save
		return nil, err
	}
	if _, err := r.U32(); err != nil { // equipments offset, recomputed on save
		return nil, err
	}
	if doc.Version == 2 {
		if doc.UnknownOne, err = r.U32(); err != nil {
			return nil, err
		}
	}

	equipmentCounts := make([]uint32, categoryCount)
	doc.Categories = make([]UnitVariantCategory, categoryCount)
	for i := uint32(0); i < categoryCount; i++ {
		name, err := r.StringU16Padded(unitVariantNamePadding / 2)
		if err != nil {
			return nil, err
		}
		id, err := r.U64()
		if err != nil {
			return nil, err
		}
		equipmentsOnCategory, err := r.U32()
		if err != nil {
			return nil, err
		}
		if _, err := r.U32(); err != nil { // equipments count before this category
			return nil, err
		}
		doc.Categories[i] = UnitVariantCategory{Name: name, ID: id}
		equipmentCounts[i] = equipmentsOnCategory
	}

	for i := range doc.Categories {
		equipments := make([]UnitVariantEquipment, equipmentCounts[i])
		for j := range equipments {
			name1, err := r.StringU16Padded(unitVariantNamePadding / 2)
			if err != nil {
				return nil, err
			}
			name2, err := r.StringU16Padded(unitVariantNamePadding / 2)
			if err != nil {
				return nil, err
			}
			if _, err := r.Bytes(2); err != nil { // two trailing NUL bytes
				return nil, err
			}
			equipments[j] = UnitVariantEquipment{Name1: name1, Name2: name2}
		}
		doc.Categories[i].Equipments = equipments
	}

	if r.Pos() != r.Len() {
		return nil, newSizeMismatch(int(r.Len()), int(r.Pos()))
	}

	return doc, nil
}

// Save re-encodes d, recomputing the categories/equipments offsets exactly
// as the original encoder does.
func (d *UnitVariantDocument) Save() ([]byte, error) {
	headerSize := unitVariantHeaderSize(d.Version)

	catBuf := NewWriter()
	var equipmentsCount uint32
	for _, cat := range d.Categories {
		if err := catBuf.StringU16Padded(cat.Name, unitVariantNamePadding/2); err != nil {
			return nil, err
		}
		catBuf.U64(cat.ID)
		catBuf.U32(uint32(len(cat.Equipments)))
		catBuf.U32(equipmentsCount)
		equipmentsCount += uint32(len(cat.Equipments))
	}

	eqBuf := NewWriter()
	for _, cat := range d.Categories {
		for _, eq := range cat.Equipments {
			if err := eqBuf.StringU16Padded(eq.Name1, unitVariantNamePadding/2); err != nil {
				return nil, err
			}
			if err := eqBuf.StringU16Padded(eq.Name2, unitVariantNamePadding/2); err != nil {
				return nil, err
			}
			eqBuf.RawBytes([]byte{0, 0})
		}
	}

	w := NewWriter()
	w.RawBytes(unitVariantSignature)
	w.U32(d.Version)
	w.U32(uint32(len(d.Categories)))
	w.U32(headerSize)
	w.U32(headerSize + catBuf.Len())
	if d.Version == 2 {
		w.U32(d.UnknownOne)
	} else if d.Version != 1 {
		return nil, newErr(ErrUnsupportedVersion, fmt.Sprintf("unit variant version %d is not supported", d.Version))
	}
	w.RawBytes(catBuf.Bytes())
	w.RawBytes(eqBuf.Bytes())

	return w.Bytes(), nil
}
