package app

// Version is stamped at build time with -ldflags "-X taskdash/cmd/internal/app.Version=...".
var Version = "dev"
