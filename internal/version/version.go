package version

// Set at build time with -ldflags "-X".
var (
	// Version is the version of the running binary.
	Version = "0.1.0"

	// GitCommit is the commit the binary was built from.
	GitCommit string

	// BuildDate is the date the executable was built.
	BuildDate string
)
