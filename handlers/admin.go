package handlers

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/zeptools/gw-docprint/artifacts"
	"github.com/zeptools/gw-docprint/capture"
	"github.com/zeptools/gw-docprint/compositor"
	"github.com/zeptools/gw-docprint/locks/keyonlylocks"
	"github.com/zeptools/gw-docprint/pdfs"
	"github.com/zeptools/gw-docprint/sec"
	"github.com/zeptools/gw-docprint/storages/keystores"
	"github.com/zeptools/gw-docprint/uds"
	"github.com/zeptools/gw-docprint/visual"
)

// TokenSigner mints operator tokens for the API.
type TokenSigner struct {
	Issuer string
	KeyID  string
	Key    *rsa.PrivateKey
}

// Admin builds the commands of the admin unix socket.
type Admin struct {
	Registry *visual.Registry
	Exporter Exporter
	Locks    *keyonlylocks.ActionLocks
	Ledger   LedgerReader                // optional
	Purgers  map[string]artifacts.Purger // by name, optional
	Signer   *TokenSigner                // optional
	KeyDirs  *keystores.Conf             // keygen, optional
}

func (a *Admin) Commands() map[string]uds.CmdHnd {
	cmds := map[string]uds.CmdHnd{
		"sources": {
			Desc: "list registered sources",
			Fn:   a.sources,
		},
		"export": {
			Desc:  "generate and persist a document",
			Usage: "export <sourceId> [format_orientation] [label ...]",
			Fn:    a.export,
		},
	}
	if a.Ledger != nil {
		cmds["exports"] = uds.CmdHnd{
			Desc:  "show recent exports",
			Usage: "exports [limit]",
			Fn:    a.exports,
		}
	}
	if len(a.Purgers) > 0 {
		cmds["purge"] = uds.CmdHnd{
			Desc:  "remove stored artifacts and ledger rows older than a duration",
			Usage: "purge <duration e.g. 720h>",
			Fn:    a.purge,
		}
	}
	if a.Signer != nil {
		cmds["token"] = uds.CmdHnd{
			Desc:  "issue an api token for an operator",
			Usage: "token <subject> [ttl e.g. 12h]",
			Fn:    a.token,
		}
		cmds["jwks"] = uds.CmdHnd{
			Desc: "print the public key set of the signing key",
			Fn:   a.jwks,
		}
	}
	if a.KeyDirs != nil {
		cmds["keygen"] = uds.CmdHnd{
			Desc:  "write a new rsa key pair into the keystore directories",
			Usage: "keygen [bits]",
			Fn:    a.keygen,
		}
	}
	return cmds
}

func (a *Admin) sources(_ context.Context, _ []string, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCLASS\tNODES")
	for _, info := range a.Registry.List() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", info.ID, info.Class, info.Nodes)
	}
	return tw.Flush()
}

func (a *Admin) export(ctx context.Context, args []string, w io.Writer) error {
	if len(args) < 1 {
		return errors.New("sourceId required")
	}
	req := compositor.Request{SourceID: args[0], Context: "admin"}
	labels := args[1:]
	if len(labels) > 0 {
		if g, err := pdfs.ParseGeometry(labels[0]); err == nil {
			req.Geometry = &g
			labels = labels[1:]
		}
	}
	req.WatermarkLabels = compositor.NewLabels(labels...)

	release, ok := a.Locks.TryAcquire(keyonlylocks.ExportKey(req.SourceID))
	if !ok {
		return fmt.Errorf("an export of %q is in progress", req.SourceID)
	}
	defer release()
	art, err := a.Exporter.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("%s (%s)", capture.UserMessage(err), err)
	}
	_, err = fmt.Fprintf(w, "%s: %d page(s), %d bytes, %s -> %s\n", art.Name, art.Pages, len(art.Data), art.Geometry, art.Location)
	return err
}

func (a *Admin) exports(ctx context.Context, args []string, w io.Writer) error {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad limit %q", args[0])
		}
		limit = n
	}
	rows, err := a.Ledger.Recent(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tAT\tSOURCE\tSTATE\tPAGES\tNAME\tERROR")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.SourceID, r.State, r.Pages.ForceValue(), r.Name, r.ErrorKind.ForceValue())
	}
	return tw.Flush()
}

func (a *Admin) purge(ctx context.Context, args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("duration required")
	}
	olderThan, err := time.ParseDuration(args[0])
	if err != nil || olderThan <= 0 {
		return fmt.Errorf("bad duration %q", args[0])
	}
	var errs []error
	for name, p := range a.Purgers {
		n, err := p.Purge(ctx, olderThan)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		_, _ = fmt.Fprintf(w, "%s: %d removed\n", name, n)
	}
	return errors.Join(errs...)
}

func (a *Admin) token(_ context.Context, args []string, w io.Writer) error {
	if len(args) < 1 {
		return errors.New("subject required")
	}
	ttl := 12 * time.Hour
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil || d <= 0 {
			return fmt.Errorf("bad ttl %q", args[1])
		}
		ttl = d
	}
	signed, err := sec.SignOperatorToken(a.Signer.Issuer, args[0], "export", a.Signer.Key, a.Signer.KeyID, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, signed)
	return err
}

func (a *Admin) jwks(_ context.Context, _ []string, w io.Writer) error {
	set := &sec.JWKS{Keys: []sec.JWK{sec.NewJWKFromPublicKey(a.Signer.KeyID, &a.Signer.Key.PublicKey)}}
	b, err := set.MarshalIndent()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func (a *Admin) keygen(_ context.Context, args []string, w io.Writer) error {
	bits := 2048
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 2048 {
			return fmt.Errorf("bad bits %q, at least 2048", args[0])
		}
		bits = n
	}
	kid, err := sec.GenerateKeyPairFiles(a.KeyDirs.PrivateKeyDir, a.KeyDirs.PublicKeyDir, bits)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "kid: %s (set signing_key_id to sign with it, restart to verify with it)\n", kid)
	return err
}
