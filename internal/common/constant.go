package common

// RefreshTokenCookieName is the cookie carrying the refresh token between
// the browser and the /auth routes.
const RefreshTokenCookieName = "refresh_token"

// AuthorizationScheme prefixes the access token in the Authorization header.
const AuthorizationScheme = "Bearer"
