package constants

import "time"

const (
	ToastedCachePrefix   = "toasted"      // Toasted notification ids per role and user
	ChatTokenCacheSuffix = "ChatToken"    // Chat tokens, stored as "<chatType>ChatToken:<userId>"
	ChatTokenExpiry      = 24 * time.Hour // Provider tokens are reminted daily
)

// Credential storage keys. Client keys carry a prefix so a client and a
// professional can be signed in on one device.
const (
	ProfessionalAccessTokenKey  = "accessToken"
	ProfessionalRefreshTokenKey = "refreshToken"
	ClientAccessTokenKey        = "clientAccessToken"
	ClientRefreshTokenKey       = "clientRefreshToken"
)
