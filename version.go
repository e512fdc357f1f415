package intake

// Version is the release of the module. Builds override it with
// -ldflags "-X github.com/aretw0/intake.Version=...".
var Version = "0.3.0"
