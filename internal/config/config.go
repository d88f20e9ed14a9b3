// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config reads scheduler files.
//
// A scheduler file is YAML:
//
//	parallelism: 2
//	allocation_timeout: 5m
//	max_failures: 3
//	devices:
//	  - serial: dut1
//	    product: eve
//	    attrs: [wifi]
//	invocations:
//	  - name: wifi.Connect
//	    command: ["./run_test.sh", "wifi.Connect"]
//	    select:
//	      attrs: [wifi]
//	    repeat: 3
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"go.chromium.org/tradefed/errors"
	"go.chromium.org/tradefed/internal/devicepool"
	"go.chromium.org/tradefed/internal/scheduler"
)

// File is the content of a scheduler file.
type File struct {
	Parallelism       int              `yaml:"parallelism"`
	AllocationTimeout time.Duration    `yaml:"allocation_timeout"`
	MaxFailures       int              `yaml:"max_failures"`
	Devices           []DeviceSpec     `yaml:"devices"`
	Invocations       []InvocationSpec `yaml:"invocations"`
}

// DeviceSpec describes a device.
type DeviceSpec struct {
	Serial   string   `yaml:"serial"`
	Product  string   `yaml:"product"`
	Attrs    []string `yaml:"attrs"`
	Priority int      `yaml:"priority"`
}

// InvocationSpec describes an invocation.
type InvocationSpec struct {
	Name     string              `yaml:"name"`
	Command  []string            `yaml:"command"`
	Select   devicepool.Selector `yaml:"select"`
	Disabled bool                `yaml:"disabled"`
	// Repeat runs the invocation this many times, named "name#1" and so
	// on. Zero and one both mean a single run.
	Repeat int `yaml:"repeat"`
}

// Load reads and validates the scheduler file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scheduler file")
	}
	f, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	return f, nil
}

// Parse parses and validates a scheduler file. Unknown keys are errors.
func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks f for consistency.
func (f *File) Validate() error {
	if f.Parallelism < 0 {
		return errors.Errorf("negative parallelism %d", f.Parallelism)
	}
	if f.AllocationTimeout < 0 {
		return errors.Errorf("negative allocation_timeout %v", f.AllocationTimeout)
	}
	if len(f.Devices) == 0 {
		return errors.New("no devices")
	}
	serials := make(map[string]struct{})
	for i, d := range f.Devices {
		if d.Serial == "" {
			return errors.Errorf("device %d has no serial", i)
		}
		if _, ok := serials[d.Serial]; ok {
			return errors.Errorf("duplicated device %s", d.Serial)
		}
		serials[d.Serial] = struct{}{}
	}
	names := make(map[string]struct{})
	for i, inv := range f.Invocations {
		if inv.Name == "" {
			return errors.Errorf("invocation %d has no name", i)
		}
		if _, ok := names[inv.Name]; ok {
			return errors.Errorf("duplicated invocation %s", inv.Name)
		}
		names[inv.Name] = struct{}{}
		if len(inv.Command) == 0 {
			return errors.Errorf("invocation %s has no command", inv.Name)
		}
		if inv.Repeat < 0 {
			return errors.Errorf("invocation %s has negative repeat %d", inv.Name, inv.Repeat)
		}
		for _, s := range inv.Select.Serials {
			if _, ok := serials[s]; !ok {
				return errors.Errorf("invocation %s selects unknown device %s", inv.Name, s)
			}
		}
	}
	return nil
}

// PoolDevices returns the devices to register in a pool.
func (f *File) PoolDevices() []*devicepool.Device {
	devs := make([]*devicepool.Device, len(f.Devices))
	for i, d := range f.Devices {
		devs[i] = &devicepool.Device{
			Serial:   d.Serial,
			Product:  d.Product,
			Attrs:    d.Attrs,
			Priority: d.Priority,
		}
	}
	return devs
}

// SchedulerInvocations returns the invocations with repeats expanded.
func (f *File) SchedulerInvocations() []*scheduler.Invocation {
	var invs []*scheduler.Invocation
	for _, spec := range f.Invocations {
		n := spec.Repeat
		if n <= 1 {
			invs = append(invs, newInvocation(spec, spec.Name))
			continue
		}
		for i := 1; i <= n; i++ {
			invs = append(invs, newInvocation(spec, fmt.Sprintf("%s#%d", spec.Name, i)))
		}
	}
	return invs
}

func newInvocation(spec InvocationSpec, name string) *scheduler.Invocation {
	return &scheduler.Invocation{
		Name:     name,
		Selector: spec.Select,
		Command:  spec.Command,
		Disabled: spec.Disabled,
	}
}

// SchedulerConfig returns the scheduler settings of f.
func (f *File) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		Parallelism:       f.Parallelism,
		AllocationTimeout: f.AllocationTimeout,
		MaxFailures:       f.MaxFailures,
	}
}
