package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// ForwardedForHeaderName is the metadata key a proxy uses to pass the
// original client address.
const ForwardedForHeaderName = "x-forwarded-for"

// UnknownIP is recorded when the client address cannot be determined.
const UnknownIP = "UNKNOWN"
