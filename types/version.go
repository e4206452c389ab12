package types

// Version is the canonical project version.
const Version = "0.2.0"
