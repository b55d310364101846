// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"testing"
)

func TestIsFastbin(t *testing.T) {
	if !IsFastbin(fastbinSignature) {
		t.Error("IsFastbin should accept the FASTBIN0 signature")
	}
	if IsFastbin([]byte("FASTBIN1")) {
		t.Error("IsFastbin should reject a mismatched signature")
	}
}

func buildEmptyFastbin(version uint16) []byte {
	w := NewWriter()
	w.RawBytes(fastbinSignature)
	w.U16(version)

	zeroList := func() { w.U32(0) }
	zeroList()                      // battlefield_building_list
	zeroList()                      // battlefield_building_list_far
	zeroList()                      // capture_location_set
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // ef_line_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // go_outlines
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // non_terrain_outlines
	zeroList()                      // zones_template_list
	zeroList()                      // prefab_instance_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // bmd_outline_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // terrain_outlines
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // lite_building_outlines
	zeroList()                      // camera_zones
	zeroList()                      // civilian_deployment_list
	zeroList()                      // civilian_shelter_list
	zeroList()                      // prop_list
	zeroList()                      // particle_emitter_list
	encodeFastbinBlob(w, nil)       // ai_hints
	zeroList()                      // light_probe_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // terrain_stencil_triangle_list
	zeroList()                      // point_light_list
	zeroList()                      // building_projectile_emitter_list
	FastbinPlayableArea{}.encode(w) // playable_area
	zeroList()                      // custom_material_mesh_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // terrain_stencil_blend_triangle_list
	zeroList()                      // spot_light_list
	zeroList()                      // sound_shape_list
	zeroList()                      // composite_scene_list
	zeroList()                      // deployment_list
	zeroList()                      // bmd_catchment_area_list
	zeroList()                      // toggleable_buildings_slot_list
	zeroList()                      // terrain_decal_list
	zeroList()                      // tree_list_reference_list
	zeroList()                      // grass_list_reference_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // water_outlines

	return w.Bytes()
}

func TestFastbinRoundTripEmpty(t *testing.T) {
	data := buildEmptyFastbin(27)

	doc, err := ReadFastbin(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != 27 {
		t.Errorf("version = %d, want 27", doc.Version)
	}
	if len(doc.PropList) != 0 || len(doc.WaterOutlines.Polylines) != 0 {
		t.Errorf("expected all chunks empty, got %+v", doc)
	}

	out, err := doc.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("save() round trip mismatch")
	}
}

func TestFastbinUnsupportedVersion(t *testing.T) {
	data := buildEmptyFastbin(99)
	_, err := ReadFastbin(data, nil)
	kind, ok := Kind(err)
	if !ok || kind != ErrUnsupportedVersion {
		t.Fatalf("err = %v, want UnsupportedVersion", err)
	}
}

func TestFastbinSizeMismatch(t *testing.T) {
	data := buildEmptyFastbin(27)
	data = append(data, 0x01, 0x02, 0x03)
	_, err := ReadFastbin(data, nil)
	kind, ok := Kind(err)
	if !ok || kind != ErrSizeMismatch {
		t.Fatalf("err = %v, want SizeMismatch", err)
	}
}

func TestFastbinEntityAndLightRoundTrip(t *testing.T) {
	w := NewWriter()
	w.RawBytes(fastbinSignature)
	w.U16(25)

	building := FastbinEntity{
		UID:            0x1122334455,
		Key:            "wh_glb_bucket_01",
		Transform:      FastbinTransform{M00: 1, M11: 1, M22: 1, M30: 10, M31: 0, M32: -5},
		Indestructible: true,
		CastShadows:    true,
	}
	encodeFastbinEntityList(w, []FastbinEntity{building})
	zeroList := func() { w.U32(0) }
	zeroList() // battlefield_building_list_far
	zeroList() // capture_location_set
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // ef_line_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // go_outlines
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // non_terrain_outlines
	zeroList()                                        // zones_template_list
	zeroList()                                        // prefab_instance_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // bmd_outline_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // terrain_outlines
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // lite_building_outlines
	zeroList()                                        // camera_zones
	zeroList()                                        // civilian_deployment_list
	zeroList()                                        // civilian_shelter_list
	zeroList()                                        // prop_list
	zeroList()                                        // particle_emitter_list
	encodeFastbinBlob(w, []byte{0xAA})                // ai_hints

	light := FastbinLight{Position: Coord3D{X: 1, Y: 2, Z: 3}, Colour: 0x00112233, Radius: 5, Intensity: 0.5}
	encodeFastbinLightList(w, []FastbinLight{light})  // light_probe_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{}) // terrain_stencil_triangle_list
	zeroList()                                        // point_light_list
	zeroList()                                        // building_projectile_emitter_list
	FastbinPlayableArea{Max: Coord3D{X: 100, Y: 100, Z: 100}}.encode(w)
	zeroList()                                         // custom_material_mesh_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{})  // terrain_stencil_blend_triangle_list
	zeroList()                                         // spot_light_list
	zeroList()                                         // sound_shape_list
	zeroList()                                         // composite_scene_list
	zeroList()                                         // deployment_list
	zeroList()                                         // bmd_catchment_area_list
	zeroList()                                         // toggleable_buildings_slot_list
	zeroList()                                         // terrain_decal_list
	zeroList()                                         // tree_list_reference_list
	zeroList()                                         // grass_list_reference_list
	encodeFastbinPolylineSet(w, FastbinPolylineSet{})  // water_outlines

	data := w.Bytes()
	doc, err := ReadFastbin(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.BattlefieldBuildingList) != 1 || doc.BattlefieldBuildingList[0].Key != "wh_glb_bucket_01" {
		t.Fatalf("building = %+v", doc.BattlefieldBuildingList)
	}
	if !doc.BattlefieldBuildingList[0].Indestructible || !doc.BattlefieldBuildingList[0].CastShadows {
		t.Errorf("flags not preserved: %+v", doc.BattlefieldBuildingList[0])
	}
	if len(doc.LightProbeList) != 1 || doc.LightProbeList[0].Colour != 0x00112233 {
		t.Fatalf("light = %+v", doc.LightProbeList)
	}
	if doc.PlayableArea.Max.X != 100 {
		t.Errorf("playable area = %+v", doc.PlayableArea)
	}

	out, err := doc.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("save() round trip mismatch")
	}
}
