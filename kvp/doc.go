// Package kvp implements the typed key/value tree used to describe backend
// configuration and entity slots.
//
// A Frame maps slot keys to Values and keeps insertion order. Paths such as
// "/desc/compression" address nested frames; intermediate frames are created
// on write. Values are tagged with one of the ValueType kinds and every
// conversion site switches over the full set of kinds.
//
// Two wire formats are provided: TOML for human-edited configuration files
// and CBOR for lossless persistence of entity slots.
package kvp
