package sec

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
)

// JWK JSON Web Key
type JWK struct {
	Kty string `json:"kty"` // Key Type
	Use string `json:"use"` // Usage
	Kid string `json:"kid"` // Key ID
	Alg string `json:"alg"` // Algorithm
	N   string `json:"n"`   // Modulus
	E   string `json:"e"`   // Exponent
}

// ToPublicKey Convert JWK to an rsa.PublicKey
func (j *JWK) ToPublicKey() (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode N: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode E: %w", err)
	}
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: e,
	}, nil
}

func NewJWKFromPublicKey(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kid,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// JWKS JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

func (s *JWKS) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// LoadPublicPEMKeysAsJWKS reads every `{kid}_public.pem` file of dirPath.
func LoadPublicPEMKeysAsJWKS(dirPath string) (*JWKS, error) {
	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}
	var keys []JWK
	for _, entry := range dirEntries {
		kid, ok := strings.CutSuffix(entry.Name(), "_public.pem")
		if entry.IsDir() || !ok {
			continue
		}
		publicKey, err := LoadLocalPublicPEMKey(filepath.Join(dirPath, entry.Name()))
		if errors.Is(err, errNotRSA) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		keys = append(keys, NewJWKFromPublicKey(kid, publicKey))
	}
	return &JWKS{Keys: keys}, nil
}

var errNotRSA = errors.New("not an RSA public key")

func SavePrivatePEMKeyLocal(filePath string, privateKey *rsa.PrivateKey) error {
	pemBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}
	return os.WriteFile(filePath, pem.EncodeToMemory(pemBlock), 0600)
}

func SavePublicPEMKeyLocal(filePath string, publicKey *rsa.PublicKey) error {
	bytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return err
	}
	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: bytes,
	}
	return os.WriteFile(filePath, pem.EncodeToMemory(pemBlock), 0644)
}

func LoadLocalPrivatePEMKey(filePath string) (*rsa.PrivateKey, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	pemBlock, _ := pem.Decode(bytes)
	if pemBlock == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParsePKCS1PrivateKey(pemBlock.Bytes)
}

func LoadLocalPublicPEMKey(filePath string) (*rsa.PublicKey, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	pemBlock, rest := pem.Decode(bytes)
	if pemBlock == nil || pemBlock.Type != "PUBLIC KEY" {
		return nil, errors.New("no PUBLIC KEY block found")
	}
	if len(strings.TrimSpace(string(rest))) > 0 {
		// a single public key per key id
		return nil, errors.New("extra data found after PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(pemBlock.Bytes)
	if err != nil {
		return nil, err
	}
	publicKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errNotRSA
	}
	return publicKey, nil
}

func GenerateKeyID(pub *rsa.PublicKey, length int) (string, error) {
	if length < 8 || length > 32 {
		return "", errors.New("8 <= length <= 32")
	}
	n := pub.N.Bytes()
	e := big.NewInt(int64(pub.E)).Bytes()
	h := sha256.Sum256(append(n, e...))
	return hex.EncodeToString(h[:length]), nil
}

// GenerateKeyPairFiles writes a new `{kid}_private.pem` / `{kid}_public.pem`
// pair and returns the kid.
func GenerateKeyPairFiles(privateDir string, publicDir string, bits int) (string, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", err
	}
	kid, err := GenerateKeyID(&privateKey.PublicKey, 8)
	if err != nil {
		return "", err
	}
	if err = SavePrivatePEMKeyLocal(filepath.Join(privateDir, kid+"_private.pem"), privateKey); err != nil {
		return "", err
	}
	if err = SavePublicPEMKeyLocal(filepath.Join(publicDir, kid+"_public.pem"), &privateKey.PublicKey); err != nil {
		return "", err
	}
	return kid, nil
}
