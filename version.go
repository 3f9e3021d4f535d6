package filemesh

// Version is the release version, overridden at build time via
// -ldflags "-X github.com/hupe1980/filemesh.Version=...".
var Version = "dev"
