package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/nullbound/pgsync/internal/pgerr"
	"github.com/nullbound/pgsync/internal/wire"
)

const scramMechanism = "SCRAM-SHA-256"

// scramSHA256 drives the SASL SCRAM-SHA-256 exchange against a PostgreSQL
// backend: client-first -> server-first (AuthenticationSASLContinue) ->
// client-final -> server-final (AuthenticationSASLFinal) -> verify.
//
// c must already have seen the AuthenticationSASL message; sasl carries its
// offered-mechanisms payload.
func scramSHA256(c *wire.Conn, user, password string, sasl wire.AuthenticationSASL) error {
	if !containsMechanism(sasl.Mechanisms(), scramMechanism) {
		return &pgerr.UnsupportedAuthenticationError{Detail: fmt.Sprintf("server offered %v, client requires SCRAM-SHA-256", sasl.Mechanisms())}
	}

	nonceBytes := make([]byte, 18)
	if _, err := rand.Read(nonceBytes); err != nil {
		return fmt.Errorf("auth: generating client nonce: %w", err)
	}
	clientNonce := base64.StdEncoding.EncodeToString(nonceBytes)

	// gs2-header "n,,": no channel binding, no authzid.
	const gs2Header = "n,,"
	clientFirstBare := "n=" + escapeUsername(user) + ",r=" + clientNonce
	clientFirstMsg := gs2Header + clientFirstBare

	c.WriteSASLInitialResponse(scramMechanism, []byte(clientFirstMsg))
	if err := c.Flush(); err != nil {
		return err
	}

	msg, err := c.ReadBackend()
	if err != nil {
		return err
	}
	cont, ok := msg.(wire.AuthenticationSASLContinue)
	if !ok {
		return unexpectedDuringAuth(msg)
	}
	serverFirst := string(cont.Data)

	serverNonce, salt, iterations, err := parseServerFirst(serverFirst)
	if err != nil {
		return &pgerr.AuthenticationFailedError{Reason: err.Error()}
	}
	if !strings.HasPrefix(serverNonce, clientNonce) {
		return &pgerr.AuthenticationFailedError{Reason: "server nonce does not start with client nonce"}
	}

	saltedPassword := pbkdf2.Key([]byte(password), salt, iterations, sha256.Size, sha256.New)
	clientKey := hmacSHA256(saltedPassword, []byte("Client Key"))
	storedKey := sha256Sum(clientKey)

	channelBinding := "c=" + base64.StdEncoding.EncodeToString([]byte(gs2Header))
	clientFinalWithoutProof := channelBinding + ",r=" + serverNonce

	authMessage := clientFirstBare + "," + serverFirst + "," + clientFinalWithoutProof
	clientSignature := hmacSHA256(storedKey, []byte(authMessage))
	clientProof := xorBytes(clientKey, clientSignature)

	clientFinalMsg := clientFinalWithoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	c.WriteSASLResponse([]byte(clientFinalMsg))
	if err := c.Flush(); err != nil {
		return err
	}

	msg, err = c.ReadBackend()
	if err != nil {
		return err
	}
	final, ok := msg.(wire.AuthenticationSASLFinal)
	if !ok {
		return unexpectedDuringAuth(msg)
	}

	serverKey := hmacSHA256(saltedPassword, []byte("Server Key"))
	expectedServerSig := hmacSHA256(serverKey, []byte(authMessage))
	expected := "v=" + base64.StdEncoding.EncodeToString(expectedServerSig)
	if string(final.Data) != expected {
		return &pgerr.AuthenticationFailedError{Reason: "server signature mismatch"}
	}

	return nil
}

func containsMechanism(mechs []string, target string) bool {
	for _, m := range mechs {
		if m == target {
			return true
		}
	}
	return false
}

// escapeUsername replaces "=" with "=3D" and "," with "=2C" per RFC 5802.
func escapeUsername(user string) string {
	user = strings.ReplaceAll(user, "=", "=3D")
	user = strings.ReplaceAll(user, ",", "=2C")
	return user
}

// parseServerFirst parses "r=<nonce>,s=<salt>,i=<iterations>".
func parseServerFirst(msg string) (nonce string, salt []byte, iterations int, err error) {
	for _, part := range strings.Split(msg, ",") {
		switch {
		case strings.HasPrefix(part, "r="):
			nonce = part[2:]
		case strings.HasPrefix(part, "s="):
			salt, err = base64.StdEncoding.DecodeString(part[2:])
			if err != nil {
				return "", nil, 0, fmt.Errorf("decoding salt: %w", err)
			}
		case strings.HasPrefix(part, "i="):
			iterations, err = strconv.Atoi(part[2:])
			if err != nil {
				return "", nil, 0, fmt.Errorf("parsing iteration count: %w", err)
			}
		}
	}
	if nonce == "" || salt == nil || iterations == 0 {
		return "", nil, 0, fmt.Errorf("incomplete server-first-message: %q", msg)
	}
	return nonce, salt, iterations, nil
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Sum(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
