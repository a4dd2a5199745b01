package version

// Version is set at link time with
// -ldflags "-X github.com/bnema/mcrt/internal/version.Version=v1.2.3".
var Version = "dev"
