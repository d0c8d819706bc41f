/******************************************************************************
 *
 *  Description :
 *
 *    A second proxy.RejectJoinListener, adapted from
 *    server/auth/token/auth_token.go's hand-rolled binary token layout and
 *    HMAC signing scheme. Where JWTAuthorizer validates a standard JWT,
 *    BinaryTokenAuthorizer validates a compact fixed-layout token of the
 *    kind the original issued for session resumption, re-keyed here to
 *    bind a join's requested user name instead of a store.types.Uid.
 *
 *****************************************************************************/

package authz

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/collabhub/sessionproxy/internal/proxy"
)

// Token composition: [4:expires][2:serial][32:signature] == 38 bytes.
// The signature covers the expires/serial fields plus the join name as
// associated data, so the name never has to travel inside the token
// itself. The wire carries this as a base64 string, like every other
// join attribute GetXMLUserProps yields from XML - there is no binary
// attribute value path, so Issue/RejectJoin encode and decode at the
// boundary rather than assuming one.
const (
	legacyTokenExpiresStart = 0
	legacyTokenExpiresEnd   = 4

	legacyTokenSerialStart = 4
	legacyTokenSerialEnd   = 6

	legacyTokenSignatureStart = 6

	legacyTokenLength    = 38
	legacyTokenMinKeyLen = 32
)

// BinaryTokenAuthorizer rejects a join unless the property bag carries a
// "token" property that is a base64-encoded token decoding to a
// validly-signed, unexpired, serial-matched token bound to the join's
// requested name.
type BinaryTokenAuthorizer struct {
	hmacSalt  []byte
	serialNum int
}

type legacyConfig struct {
	// Key for signing and validating tokens.
	Key []byte `json:"key"`
	// Serial number; bumping it invalidates every token issued under the
	// previous value at once.
	SerialNum int `json:"serial_num"`
}

// InitLegacyToken parses jsonconf and constructs a BinaryTokenAuthorizer.
// Mirrors auth_token.TokenAuth.Init's validation and error-wrapping
// convention.
func InitLegacyToken(jsonconf string) (*BinaryTokenAuthorizer, error) {
	var cfg legacyConfig
	if err := json.Unmarshal([]byte(jsonconf), &cfg); err != nil {
		return nil, errors.New("authz: failed to parse legacy token config: " + err.Error())
	}
	if cfg.Key == nil || len(cfg.Key) < legacyTokenMinKeyLen {
		return nil, errors.New("authz: legacy token key is missing or too short")
	}
	return &BinaryTokenAuthorizer{hmacSalt: cfg.Key, serialNum: cfg.SerialNum}, nil
}

// Issue produces a base64-encoded token bound to name, valid for
// lifetime, suitable for carrying as a plain string join attribute.
func (a *BinaryTokenAuthorizer) Issue(name string, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		return "", errors.New("authz: non-positive token lifetime")
	}
	expires := time.Now().Add(lifetime).UTC()

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(expires.Unix()))
	binary.Write(buf, binary.LittleEndian, uint16(a.serialNum))

	hasher := hmac.New(sha256.New, a.hmacSalt)
	hasher.Write(buf.Bytes())
	hasher.Write([]byte(name))
	binary.Write(buf, binary.LittleEndian, hasher.Sum(nil))

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// RejectJoin implements proxy.RejectJoinListener. Local (server-initiated)
// joins always pass, since they never carry a bearer token.
func (a *BinaryTokenAuthorizer) RejectJoin(args proxy.RejectJoinArgs) bool {
	if args.Connection == nil {
		return false
	}
	raw, ok := args.Properties.GetString("token")
	if !ok || raw == "" {
		return true
	}
	token, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(token) < legacyTokenLength {
		return true
	}

	if snum := int(binary.LittleEndian.Uint16(token[legacyTokenSerialStart:legacyTokenSerialEnd])); snum != a.serialNum {
		return true
	}

	name, _ := args.Properties.GetString("name")
	hasher := hmac.New(sha256.New, a.hmacSalt)
	hasher.Write(token[:legacyTokenSignatureStart])
	hasher.Write([]byte(name))
	if !hmac.Equal(token[legacyTokenSignatureStart:], hasher.Sum(nil)) {
		return true
	}

	expires := time.Unix(int64(binary.LittleEndian.Uint32(token[legacyTokenExpiresStart:legacyTokenExpiresEnd])), 0).UTC()
	return expires.Before(time.Now())
}
