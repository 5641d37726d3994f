// Package turncred mints short-lived coturn shared-secret credentials, the
// same minting scheme coturn's own --use-auth-secret expects.
package turncred

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"
)

const ttl = 24 * time.Hour

// Credentials is the payload returned to a client asking how to reach TURN.
type Credentials struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
}

// Mint builds a time-boxed username/credential pair signed with secret, the
// coturn shared-secret REST scheme: username is "<expiry>:<label>",
// credential is base64(HMAC-SHA1(secret, username)).
func Mint(secret, label, turnURL, stunURL string, now time.Time) Credentials {
	username := fmt.Sprintf("%d:%s", now.Add(ttl).Unix(), label)
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	credential := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	urls := []string{stunURL}
	if turnURL != "" {
		urls = append(urls, turnURL)
	}
	return Credentials{URLs: urls, Username: username, Credential: credential}
}
