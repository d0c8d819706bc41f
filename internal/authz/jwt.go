/******************************************************************************
 *
 *  Description :
 *
 *    A sample proxy.RejectJoinListener: validates a bearer token carried in
 *    the join property bag's "auth_token" property against an HMAC key and
 *    the requested user name, the way server/auth/token/auth_token.go
 *    validates its own session tokens, but using JWT instead of a
 *    hand-rolled binary layout.
 *
 *****************************************************************************/

package authz

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/collabhub/sessionproxy/internal/proxy"
)

// JWTAuthorizer rejects a join unless the property bag carries an
// "auth_token" property that is a validly-signed, unexpired JWT whose
// "name" claim matches the join's requested user name.
type JWTAuthorizer struct {
	hmacSecret []byte
	leeway     time.Duration
}

// config mirrors auth_token.go's configType: a JSON blob handed to Init,
// not a Go struct literal, so it loads from the same config file as the
// rest of the proxy (internal/config).
type config struct {
	// Key for validating token signatures.
	Key []byte `json:"key"`
	// Clock skew tolerance, in seconds, applied to exp/nbf checks.
	LeewaySec int `json:"leeway_sec"`
}

// Init parses jsonconf and constructs a JWTAuthorizer. Mirrors
// auth_token.TokenAuth.Init's error-wrapping convention.
func Init(jsonconf string) (*JWTAuthorizer, error) {
	var cfg config
	if err := json.Unmarshal([]byte(jsonconf), &cfg); err != nil {
		return nil, errors.New("authz: failed to parse config: " + err.Error())
	}
	if len(cfg.Key) < 32 {
		return nil, errors.New("authz: the key is missing or too short")
	}
	leeway := time.Duration(cfg.LeewaySec) * time.Second
	if leeway <= 0 {
		leeway = 5 * time.Second
	}
	return &JWTAuthorizer{hmacSecret: cfg.Key, leeway: leeway}, nil
}

// claims is the subset of registered/custom claims this authorizer cares
// about.
type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// RejectJoin implements proxy.RejectJoinListener. It never rejects a local
// (server-initiated) join, since those have no originating connection to
// carry a bearer token.
func (a *JWTAuthorizer) RejectJoin(args proxy.RejectJoinArgs) bool {
	if args.Connection == nil {
		return false
	}
	raw, ok := args.Properties.GetString("auth_token")
	if !ok || raw == "" {
		return true
	}
	name, _ := args.Properties.GetString("name")

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("authz: unexpected signing method")
		}
		return a.hmacSecret, nil
	}, jwt.WithLeeway(a.leeway))
	if err != nil {
		return true
	}
	if c.Name != name {
		return true
	}
	return false
}
