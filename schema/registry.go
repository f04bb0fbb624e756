package schema

// GrantAuthDelaySeconds is the mandatory wait between starting and ending a
// delegate authentication. Long on purpose: it gives users time to notice a
// malicious delegate before it gains transfer rights over every proxy.
const GrantAuthDelaySeconds int64 = 60 * 60 * 24 * 7 * 3 // 3 weeks

type AuthState uint8

const (
	AuthUnset AuthState = iota
	AuthPending
	AuthAuthorized
	AuthRevoked
)

func (s AuthState) String() string {
	switch s {
	case AuthPending:
		return "pending"
	case AuthAuthorized:
		return "authorized"
	case AuthRevoked:
		return "revoked"
	}
	return "unset"
}

// AuthorizationRecord tracks one delegate contract through the time-locked
// grant protocol. Exactly one record per delegate identity.
type AuthorizationRecord struct {
	Delegate     Account   `json:"delegate"`
	State        AuthState `json:"state"`
	PendingSince int64     `json:"pendingSince"` // unix seconds, set on Unset -> Pending
}

// ProxyRecord binds an account to its delegate proxy. Seq increments on
// every override so derived proxy ids never collide.
type ProxyRecord struct {
	Owner   Account `json:"owner"`
	Proxy   Account `json:"proxy"`
	Revoked bool    `json:"revoked"`
	Seq     uint64  `json:"seq"`
}
