package common

// AccessTokenHeaderName is the HTTP header used to carry the access token
// on outbound requests to the sync endpoint.
const AccessTokenHeaderName = "Authorization"

// MinKDFIterations is the floor for the password-based KDF iteration count.
// Configured values below this are clamped up.
const MinKDFIterations = 100_000
