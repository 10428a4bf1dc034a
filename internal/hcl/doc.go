// Package hcl is the HCL-specific pipeline definition loader. It parses
// .hcl pipeline files into format-bound schema structs and translates them
// into the format-agnostic config model. Condition and release-name
// attributes are kept as unevaluated hcl.Expression values; they are
// evaluated later against run variables.
package hcl
