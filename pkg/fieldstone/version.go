// Package fieldstone holds module-level metadata shared by the CLI and
// library consumers.
package fieldstone

// Version is the semantic version of the fieldstone module.
const Version = "v0.1.0"
