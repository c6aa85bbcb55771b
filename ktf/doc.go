// Package ktf boots executables built for the KTF vendor platform.
//
// A KTF image exposes a single Thumb entry point. Called with the size of
// its BSS it returns a WipiExe descriptor, which leads through
// ExeInterface to the image's init function. Init allocates the five init
// parameter records on the guest heap, registers the host services the
// image calls back into, maps the PEB and finally runs the image's init
// with the parameters. The records in this package have the exact guest
// layout; fields whose purpose is unknown are kept as UnkN slots.
package ktf
