package common

// AuthorizationHeaderName is the HTTP header carrying the bearer identity
// token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// SessionTokenField is the JSON field clients use to present a single-use
// verification session token.
const SessionTokenField = "sessionToken"
