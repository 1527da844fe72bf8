// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gudaprim provides device-resident parallel primitives executed
// on the CPU with accelerator semantics.
//
// The root package is the device runtime: contexts, in-order streams,
// completion events, work-group barriers and collectives, local memory and
// pooled scratch. The primitives built on it live in subpackages:
//   - scan: single-pass inclusive scan with decoupled look-back
//   - radix: one-work-group LSD radix sort
//   - async: futures that chain submissions and own their temporaries
//
// Kernels are never allowed to rely on the order in which work-groups are
// dispatched. Config.DispatchOrder and Config.MaxResidentGroups let tests
// run the same launch in-order, reversed and shuffled with few groups
// resident at once.
package gudaprim
