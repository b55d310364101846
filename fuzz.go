// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

// Fuzz exercises kind detection and decoding of every self-describing
// format against an arbitrary input buffer, for use with go-fuzz-style
// harnesses.
func Fuzz(data []byte) int {
	doc, _, err := Decode(data, nil)
	if err != nil || doc == nil {
		return 0
	}
	return 1
}
