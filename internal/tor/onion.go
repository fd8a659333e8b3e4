package tor

import (
	"crypto/ed25519"
	"encoding/base32"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionSuffix is the top-level domain of onion services.
const OnionSuffix = ".onion"

// onionV3Version is the version byte embedded in every v3 address.
const onionV3Version = 0x03

var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (without port) is in the .onion domain.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), OnionSuffix)
}

// IsValidV3Address reports whether address is a well-formed v3 onion host
// name with a correct checksum. Subdomains are not accepted.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}
	want := computeV3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// checksum = SHA3-256(".onion checksum" || pubkey || version)[:2]
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	hash := sha3.Sum256(data)
	return hash[:2]
}

// AddressFromPublicKey derives the v3 onion host name of an ed25519 key.
func AddressFromPublicKey(pubkey ed25519.PublicKey) (string, error) {
	if len(pubkey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: public key must be %d bytes", ErrInvalidOnionAddress, ed25519.PublicKeySize)
	}
	raw := make([]byte, 0, 35)
	raw = append(raw, pubkey...)
	raw = append(raw, computeV3Checksum(pubkey, onionV3Version)...)
	raw = append(raw, onionV3Version)
	return strings.ToLower(base32.StdEncoding.EncodeToString(raw)) + OnionSuffix, nil
}

// CheckBaseURL validates the backend URL against the routing settings.
// An onion backend must be a valid v3 address and must be reached through
// a proxy; any other host is accepted as is.
func CheckBaseURL(rawURL string, proxied bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	host := u.Hostname()
	if !IsOnionHost(host) {
		return nil
	}
	if !IsValidV3Address(host) {
		return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
	}
	if !proxied {
		return ErrOnionRequiresProxy
	}
	return nil
}
