// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package devicepool

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"go.chromium.org/tradefed/condqueue"
)

// Device is a device under test that can be allocated to one invocation at a
// time.
type Device struct {
	// Serial uniquely identifies the device.
	Serial string `json:"serial"`
	// Product is the product name, e.g. "eve".
	Product string `json:"product,omitempty"`
	// Attrs lists capabilities of the device, e.g. "wifi" or "arc".
	Attrs []string `json:"attrs,omitempty"`
	// Priority orders available devices; higher is handed out first.
	Priority int `json:"priority,omitempty"`
}

func (d *Device) String() string {
	return d.Serial
}

// compareDevices orders devices by descending priority, then by serial.
func compareDevices(a, b *Device) int {
	if a.Priority != b.Priority {
		return b.Priority - a.Priority
	}
	return strings.Compare(a.Serial, b.Serial)
}

// Selector describes which devices an invocation can run on. An empty
// Selector accepts every device.
type Selector struct {
	// Serials, if non-empty, restricts allocation to these devices.
	Serials []string `yaml:"serials,omitempty" json:"serials,omitempty"`
	// Product, if non-empty, requires a device of this product.
	Product string `yaml:"product,omitempty" json:"product,omitempty"`
	// Attrs lists attributes a device must all have.
	Attrs []string `yaml:"attrs,omitempty" json:"attrs,omitempty"`
}

// Match reports whether d satisfies s.
func (s Selector) Match(d *Device) bool {
	if len(s.Serials) > 0 && !slices.Contains(s.Serials, d.Serial) {
		return false
	}
	if s.Product != "" && s.Product != d.Product {
		return false
	}
	for _, a := range s.Attrs {
		if !slices.Contains(d.Attrs, a) {
			return false
		}
	}
	return true
}

// Matcher returns s as a queue matcher.
func (s Selector) Matcher() condqueue.Matcher[*Device] {
	return s.Match
}

func (s Selector) String() string {
	var parts []string
	if len(s.Serials) > 0 {
		parts = append(parts, "serial in "+strings.Join(s.Serials, ","))
	}
	if s.Product != "" {
		parts = append(parts, "product="+s.Product)
	}
	if len(s.Attrs) > 0 {
		parts = append(parts, "attrs="+strings.Join(s.Attrs, ","))
	}
	if len(parts) == 0 {
		return "any device"
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, " "))
}
