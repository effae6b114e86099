package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zeptools/gw-docprint/compositor"
	"github.com/zeptools/gw-docprint/db/kvdb"
	"github.com/zeptools/gw-docprint/sec"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found or expired")
	ErrInvalidToken     = errors.New("invalid artifact token")
)

const DefaultKVTTL = 24 * time.Hour

// tokenPurpose binds download tokens to this use of the cipher key.
var tokenPurpose = []byte("docprint-artifact")

// KVSink keeps artifacts in a kv database for TTL. The returned location is
// an opaque download token: the sealed artifact id.
type KVSink struct {
	Client kvdb.Client
	Cipher *sec.XChaCha20Poly1305Cipher
	TTL    time.Duration
}

var (
	_ compositor.Sink = (*KVSink)(nil)
	_ Remover         = (*KVSink)(nil)
)

// Stored is an artifact read back from the kv database.
type Stored struct {
	ID        string
	Name      string
	Data      []byte
	Pages     int
	SourceID  string
	Class     string
	Geometry  string
	Checksum  string
	CreatedAt time.Time
}

func (s *KVSink) keys(id string) (data string, meta string) {
	prefix := s.Client.Conf().KeyPrefix
	return prefix + "artifact:" + id + ":data", prefix + "artifact:" + id + ":meta"
}

func (s *KVSink) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultKVTTL
}

func (s *KVSink) Persist(ctx context.Context, a *compositor.Artifact) (string, error) {
	id, err := sec.GenerateOpaqueToken(16)
	if err != nil {
		return "", fmt.Errorf("kv sink: %w", err)
	}
	dataKey, metaKey := s.keys(id)
	if err := s.Client.Set(ctx, dataKey, a.Data, s.ttl()); err != nil {
		return "", fmt.Errorf("kv sink: store data: %w", err)
	}
	meta := map[string]any{
		"name":       a.Name,
		"pages":      a.Pages,
		"source_id":  a.SourceID,
		"class":      a.Class.String(),
		"geometry":   a.Geometry.String(),
		"checksum":   sec.HashHexSHA256(a.Data),
		"created_at": a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.Client.SetFields(ctx, metaKey, meta, s.ttl()); err != nil {
		_, _ = s.Client.Delete(ctx, dataKey)
		return "", fmt.Errorf("kv sink: store meta: %w", err)
	}
	token, err := s.Cipher.EncryptEncode([]byte(id), tokenPurpose)
	if err != nil {
		_, _ = s.Client.Delete(ctx, dataKey, metaKey)
		return "", fmt.Errorf("kv sink: seal token: %w", err)
	}
	return token, nil
}

// Fetch opens a download token and reads the artifact behind it.
func (s *KVSink) Fetch(ctx context.Context, token string) (*Stored, error) {
	raw, err := s.Cipher.DecodeDecrypt(token, tokenPurpose)
	if err != nil {
		return nil, ErrInvalidToken
	}
	id := string(raw)
	dataKey, metaKey := s.keys(id)
	data, found, err := s.Client.Get(ctx, dataKey)
	if err != nil {
		return nil, fmt.Errorf("kv sink: read data: %w", err)
	}
	if !found {
		return nil, ErrArtifactNotFound
	}
	meta, err := s.Client.GetAllFields(ctx, metaKey)
	if err != nil {
		return nil, fmt.Errorf("kv sink: read meta: %w", err)
	}
	st := &Stored{
		ID:       id,
		Name:     meta["name"],
		Data:     data,
		SourceID: meta["source_id"],
		Class:    meta["class"],
		Geometry: meta["geometry"],
		Checksum: meta["checksum"],
	}
	if st.Name == "" {
		return nil, ErrArtifactNotFound
	}
	st.Pages, _ = strconv.Atoi(meta["pages"])
	st.CreatedAt, _ = time.Parse(time.RFC3339, meta["created_at"])
	if st.Checksum != "" && st.Checksum != sec.HashHexSHA256(data) {
		return nil, fmt.Errorf("kv sink: artifact %s checksum mismatch", id)
	}
	return st, nil
}

// Revoke deletes the artifact behind token ahead of its TTL.
func (s *KVSink) Revoke(ctx context.Context, token string) (bool, error) {
	raw, err := s.Cipher.DecodeDecrypt(token, tokenPurpose)
	if err != nil {
		return false, ErrInvalidToken
	}
	dataKey, metaKey := s.keys(string(raw))
	n, err := s.Client.Delete(ctx, dataKey, metaKey)
	return n > 0, err
}

// Remove takes back an artifact persisted under token.
func (s *KVSink) Remove(ctx context.Context, token string) error {
	_, err := s.Revoke(ctx, token)
	return err
}
