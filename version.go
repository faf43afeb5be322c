package spaceport

// Version is the SDK release version, reported in the User-Agent header.
const Version = "1.0.0"

const userAgent = "spaceport-go-sdk/" + Version
