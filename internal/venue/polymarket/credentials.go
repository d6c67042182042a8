package polymarket

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Credentials are the API key triple issued by the order gateway.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

// LoadCredentialsFromEnv reads POLY_API_KEY, POLY_API_SECRET and POLY_PASSPHRASE,
// honouring a local .env file when present.
func LoadCredentialsFromEnv() (Credentials, error) {
	_ = godotenv.Load() // best-effort
	creds := Credentials{
		Key:        os.Getenv("POLY_API_KEY"),
		Secret:     os.Getenv("POLY_API_SECRET"),
		Passphrase: os.Getenv("POLY_PASSPHRASE"),
	}
	if creds.Key == "" || creds.Secret == "" {
		return Credentials{}, errors.New("POLY_API_KEY and POLY_API_SECRET must be set")
	}
	return creds, nil
}

// sign produces the HMAC-SHA256 request signature over timestamp, method, path and body.
func (c Credentials) sign(ts time.Time, method, path string, body []byte) (stamp, signature string) {
	secret, err := base64.URLEncoding.DecodeString(c.Secret)
	if err != nil {
		secret = []byte(c.Secret)
	}
	stamp = strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(stamp + method + path))
	mac.Write(body)
	return stamp, base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
