// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gudaprim

import (
	"fmt"
	"runtime/debug"
)

const root = "github.com/LynnColeArt/gudaprim"

// Version returns the version of gudaprim and its checksum. The returned
// values are only valid in binaries built with module support. Binaries
// built from this module itself, such as primbench and test binaries,
// report the main module version, which is "(devel)" for local builds.
//
// The exact version format returned by Version may change in future.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	if b.Main.Path == root {
		return moduleVersion(&b.Main)
	}
	for _, m := range b.Deps {
		if m.Path == root {
			return moduleVersion(m)
		}
	}
	return "", ""
}

// moduleVersion formats m, including any replacement.
func moduleVersion(m *debug.Module) (version, sum string) {
	r := m.Replace
	switch {
	case r == nil:
		return m.Version, m.Sum
	case r.Version != "" && r.Path != "":
		return fmt.Sprintf("%s=>%s %s", m.Version, r.Path, r.Version), r.Sum
	case r.Version != "":
		return fmt.Sprintf("%s=>%s", m.Version, r.Version), r.Sum
	case r.Path != "":
		return fmt.Sprintf("%s=>%s", m.Version, r.Path), r.Sum
	default:
		return m.Version + "*", m.Sum + "*"
	}
}
