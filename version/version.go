package version

var version = "development"

// Version returns the client version.
func Version() string {
	return version
}
