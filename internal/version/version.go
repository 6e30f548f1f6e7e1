package version

// Current is the release version of the outreach binary, without a "v" prefix.
const Current = "0.3.0"
