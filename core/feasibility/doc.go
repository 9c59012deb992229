// Package feasibility decides whether a vessel can be served at a berth and
// computes the earliest free service window.
//
// Compatibility is checked in a fixed order (length, draft, category, berth
// status) and the first failure is reported. The window search is a first
// fit over the berth's busy intervals: existing assignments plus
// maintenance closures. The checker never mutates its inputs.
package feasibility
