// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timecode

// SMPTE 309M timezone codes.
var zones = [...]struct {
	code uint8
	name string
}{
	{0x00, "+0000"},
	{0x01, "-0100"},
	{0x02, "-0200"},
	{0x03, "-0300"},
	{0x04, "-0400"},
	{0x05, "-0500"},
	{0x06, "-0600"},
	{0x07, "-0700"},
	{0x08, "-0800"},
	{0x09, "-0900"},
	{0x0a, "-0030"},
	{0x0b, "-0130"},
	{0x0c, "-0230"},
	{0x0d, "-0330"},
	{0x0e, "-0430"},
	{0x0f, "-0530"},
	{0x10, "-1000"},
	{0x11, "-1100"},
	{0x12, "-1200"},
	{0x13, "+1300"},
	{0x14, "+1200"},
	{0x15, "+1100"},
	{0x16, "+1000"},
	{0x17, "+0900"},
	{0x18, "+0800"},
	{0x19, "+0700"},
	{0x1a, "-0630"},
	{0x1b, "-0730"},
	{0x1c, "-0830"},
	{0x1d, "-0930"},
	{0x1e, "-1030"},
	{0x1f, "-1130"},
	{0x20, "+0600"},
	{0x21, "+0500"},
	{0x22, "+0400"},
	{0x23, "+0300"},
	{0x24, "+0200"},
	{0x25, "+0100"},
	{0x2a, "+1130"},
	{0x2b, "+1030"},
	{0x2c, "+0930"},
	{0x2d, "+0830"},
	{0x2e, "+0730"},
	{0x2f, "+0630"},
	{0x3a, "+0530"},
	{0x3b, "+0430"},
	{0x3c, "+0330"},
	{0x3d, "+0230"},
	{0x3e, "+0130"},
	{0x3f, "+0030"},
}

// zoneCode returns the code of the named timezone.
// Unknown timezones map to UTC.
func zoneCode(name string) uint8 {
	if name == "-0000" {
		return 0
	}
	for _, z := range zones {
		if z.name == name {
			return z.code
		}
	}
	return 0
}

// zoneName returns the name of the timezone code.
// Unknown codes map to UTC.
func zoneName(code uint8) string {
	for _, z := range zones {
		if z.code == code {
			return z.name
		}
	}
	return "+0000"
}
