package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashita-ai/kansoku/internal/auth"
)

const tokenUsage = `usage: kansoku token <issue|keygen|hash-key> [flags]

  issue     sign a JWT with KANSOKU_JWT_PRIVATE_KEY (or -key)
  keygen    write a fresh Ed25519 key pair
  hash-key  print the argon2id hash of an API key for KANSOKU_API_KEY_HASH
`

func runToken(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, tokenUsage)
		return errors.New("missing token subcommand")
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "issue":
		return runTokenIssue(args, stdout, stderr)
	case "keygen":
		return runTokenKeygen(args, stdout, stderr)
	case "hash-key":
		return runTokenHashKey(args, os.Stdin, stdout, stderr)
	default:
		_, _ = fmt.Fprint(stderr, tokenUsage)
		return fmt.Errorf("unknown token subcommand %q", sub)
	}
}

func runTokenIssue(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token issue", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keyPath := fs.String("key", "", "Ed25519 private key PEM (overrides KANSOKU_JWT_PRIVATE_KEY)")
	viewer := fs.String("viewer", "", "viewer name recorded in the token")
	role := fs.String("role", string(auth.RoleViewer), "viewer or operator")
	ttl := fs.Duration("ttl", 0, "token lifetime (default KANSOKU_JWT_EXPIRATION)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig("", 0)
	if err != nil {
		return err
	}
	if *keyPath == "" {
		*keyPath = cfg.JWTPrivateKeyPath
	}
	if *keyPath == "" {
		return errors.New("no private key: set KANSOKU_JWT_PRIVATE_KEY or pass -key")
	}

	mgr, err := auth.NewJWTManager(*keyPath, "", cfg.JWTExpiration)
	if err != nil {
		return err
	}
	token, exp, err := mgr.IssueToken(*viewer, auth.Role(*role), *ttl)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, token)
	_, _ = fmt.Fprintf(stderr, "expires %s\n", exp.Format(time.RFC3339))
	return nil
}

func runTokenKeygen(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("out", ".", "directory for kansoku_ed25519.pem and kansoku_ed25519.pub.pem")
	force := fs.Bool("force", false, "overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	privPEM, pubPEM, err := auth.GenerateKeyPEM()
	if err != nil {
		return err
	}
	privPath := filepath.Join(*dir, "kansoku_ed25519.pem")
	pubPath := filepath.Join(*dir, "kansoku_ed25519.pub.pem")

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !*force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	for _, f := range []struct {
		path string
		data []byte
		mode os.FileMode
	}{
		{privPath, privPEM, 0o600},
		{pubPath, pubPEM, 0o644},
	} {
		if err := writeFile(f.path, f.data, flags, f.mode); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(stdout, "KANSOKU_JWT_PRIVATE_KEY=%s\nKANSOKU_JWT_PUBLIC_KEY=%s\n", privPath, pubPath)
	return nil
}

func writeFile(path string, data []byte, flags int, mode os.FileMode) error {
	f, err := os.OpenFile(path, flags, mode) //nolint:gosec // path comes from the operator's -out flag
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// runTokenHashKey hashes the key given as the only argument, or the first
// line of stdin when there is none.
func runTokenHashKey(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token hash-key", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	key := fs.Arg(0)
	if key == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("empty API key")
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, hash)
	return nil
}
