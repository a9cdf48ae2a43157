// Package model defines stable boundary types for API layers.
//
// Registry identity (the 32-byte content hash and the material id) is
// unaffected by any projection. These structs are the only types intended
// for direct JSON serialization by consumers such as the CLI.
package model
