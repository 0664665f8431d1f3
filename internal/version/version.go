package version

// Version is the current version of fbdigen.
// Can be overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "1.4.0"

// Name is the application name.
const Name = "fbdigen"

// Description is a short description of the application.
const Description = "FBDI control-file field extraction and mapping-driven CSV generation"
