package common

// AccessTokenHeaderName is the HTTP header used to carry the access token on
// outbound requests.
const AccessTokenHeaderName = "Authorization"

// DeviceIDHeaderName identifies the originating device on REST writes. It is
// recorded as the clip's device origin.
const DeviceIDHeaderName = "X-Device-Id"

// SessionIDHeaderName carries the real-time session id handed out in the
// handshake hello. The fan-out excludes that session, and only that session,
// when echoing a REST write back. Device names are not unique across users,
// so the session id is the origin identity.
const SessionIDHeaderName = "X-Session-Id"
