package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	// EnvUsername and EnvPassword are the environment variables (and
	// credential-file keys) holding the AIR login.
	EnvUsername = "AIR_USERNAME"
	EnvPassword = "AIR_PASSWORD"

	// credFileMode is the only permission set accepted for credential
	// files: read/write for the owning user, nothing for anyone else.
	credFileMode = os.FileMode(0600)
)

// ErrMissingCredentials is returned when neither a credentials file nor
// the AIR_USERNAME/AIR_PASSWORD environment variables supply a login.
var ErrMissingCredentials = errors.New("AIR credentials not provided: set " +
	EnvUsername + " and " + EnvPassword + " or pass a credentials file")

// Credentials is an AIR login. It is threaded explicitly through the
// session construction call and never persisted by the client.
type Credentials struct {
	Username string
	Password string
}

// ResolveCredentials loads a login from credPath when non-empty, and
// from the environment otherwise.
//
// The credentials file is KEY=VALUE text with AIR_USERNAME and
// AIR_PASSWORD entries. Files with permissions looser than 0600 are
// tightened in place, with a warning through warnf. warnf may be nil.
func ResolveCredentials(credPath string, warnf func(format string, args ...any)) (Credentials, error) {
	if warnf == nil {
		warnf = func(string, ...any) {}
	}

	if credPath != "" {
		return credentialsFromFile(credPath, warnf)
	}

	creds := Credentials{
		Username: os.Getenv(EnvUsername),
		Password: os.Getenv(EnvPassword),
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

func credentialsFromFile(path string, warnf func(format string, args ...any)) (Credentials, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, fmt.Errorf("credentials file %s does not exist", path)
		}
		return Credentials{}, err
	}
	if info.IsDir() {
		return Credentials{}, fmt.Errorf("credentials path %s is not a file", path)
	}

	// Login secrets must not be group- or world-readable.
	if perm := info.Mode().Perm(); perm != credFileMode {
		warnf("credentials file %s has permissions %04o, tightening to 0600", path, perm)
		if err := os.Chmod(path, credFileMode); err != nil {
			return Credentials{}, fmt.Errorf("tighten permissions on %s: %w", path, err)
		}
	}

	envs, err := godotenv.Read(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials file %s: %w", path, err)
	}

	creds := Credentials{
		Username: envs[EnvUsername],
		Password: envs[EnvPassword],
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("credentials file %s must define %s and %s",
			path, EnvUsername, EnvPassword)
	}
	return creds, nil
}
