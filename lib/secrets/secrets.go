// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package secrets manages the workspace secret store: an age-encrypted
// YAML mapping of names to values, decrypted only when a run needs the
// values a job declares.
//
// The store is an armored age file (encrypted to the workspace
// identity's recipient), so it can sit in version control without
// exposing its contents. The decryption identity is an age x25519 key
// in the standard identity-file format, generated by Init and kept
// outside the workspace by default.
//
// Decrypted plaintext passes through secret.Buffer (mmap-backed memory,
// zeroed on close) until individual values are extracted for injection
// into job environments.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"
	"gopkg.in/yaml.v3"

	"github.com/greenlight-ci/greenlight/lib/secret"
)

// ErrNotInitialized is returned when an operation needs the identity or
// store file and neither exists. Callers can test with errors.Is and
// point the user at the init flow.
var ErrNotInitialized = errors.New("secret store not initialized")

// namePattern constrains secret names to environment-variable-safe
// identifiers. Names are normalized to upper case before storage so
// lookup is case-insensitive.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store provides access to one workspace's secret store. The zero
// value is not usable; construct with Open. Store performs no I/O
// until an operation is called, so Open never fails.
type Store struct {
	identityPath string
	storePath    string
}

// Open returns a Store bound to the given identity and store file
// paths. Neither file needs to exist yet.
func Open(identityPath, storePath string) *Store {
	return &Store{
		identityPath: identityPath,
		storePath:    storePath,
	}
}

// IdentityPath returns the path of the age identity file.
func (s *Store) IdentityPath() string { return s.identityPath }

// StorePath returns the path of the encrypted store file.
func (s *Store) StorePath() string { return s.storePath }

// Initialized reports whether both the identity file and the store
// file exist.
func (s *Store) Initialized() bool {
	if _, err := os.Stat(s.identityPath); err != nil {
		return false
	}
	if _, err := os.Stat(s.storePath); err != nil {
		return false
	}
	return true
}

// Init generates a fresh age x25519 identity, writes it in the
// standard identity-file format (0600, parent directory 0700), and
// creates an empty encrypted store. Returns the public key so the
// caller can display it.
//
// Init refuses to overwrite an existing identity or store: a lost
// identity means a lost store, so replacing either is always an
// explicit manual operation.
func (s *Store) Init() (string, error) {
	if _, err := os.Stat(s.identityPath); err == nil {
		return "", fmt.Errorf("identity file already exists: %s", s.identityPath)
	}
	if _, err := os.Stat(s.storePath); err == nil {
		return "", fmt.Errorf("secret store already exists: %s", s.storePath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating age identity: %w", err)
	}
	publicKey := identity.Recipient().String()

	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0o700); err != nil {
		return "", fmt.Errorf("creating identity directory: %w", err)
	}
	content := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
		time.Now().UTC().Format(time.RFC3339), publicKey, identity.String())
	if err := writeFileAtomic(s.identityPath, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("writing identity file: %w", err)
	}

	if err := s.save(map[string]string{}, identity.Recipient()); err != nil {
		return "", err
	}
	return publicKey, nil
}

// Set stores a value under the normalized form of name, creating or
// replacing it, and re-encrypts the store.
func (s *Store) Set(name, value string) error {
	normalized, err := normalizeName(name)
	if err != nil {
		return err
	}

	identities, recipient, err := s.identities()
	if err != nil {
		return err
	}
	values, err := s.load(identities)
	if err != nil {
		return err
	}
	values[normalized] = value
	return s.save(values, recipient)
}

// Remove deletes a secret by name. Returns false when the name was not
// present (the store is left untouched in that case).
func (s *Store) Remove(name string) (bool, error) {
	normalized, err := normalizeName(name)
	if err != nil {
		return false, err
	}

	identities, recipient, err := s.identities()
	if err != nil {
		return false, err
	}
	values, err := s.load(identities)
	if err != nil {
		return false, err
	}
	if _, present := values[normalized]; !present {
		return false, nil
	}
	delete(values, normalized)
	return true, s.save(values, recipient)
}

// Names returns the stored secret names, sorted. Values are never
// returned by this method.
func (s *Store) Names() ([]string, error) {
	identities, _, err := s.identities()
	if err != nil {
		return nil, err
	}
	values, err := s.load(identities)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Read decrypts the store and returns the values for the requested
// names. Every requested name must exist: a job declaring a secret
// that is not stored is a configuration error, reported with the full
// sorted list of missing names.
func (s *Store) Read(names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	identities, _, err := s.identities()
	if err != nil {
		return nil, err
	}
	values, err := s.load(identities)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		normalized, err := normalizeName(name)
		if err != nil {
			return nil, err
		}
		value, present := values[normalized]
		if !present {
			missing = append(missing, normalized)
			continue
		}
		result[normalized] = value
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("secrets not set: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// identities reads the identity file and returns the parsed decryption
// identities plus the recipient used for re-encryption (the first
// identity in the file).
func (s *Store) identities() ([]age.Identity, *age.X25519Recipient, error) {
	buffer, err := secret.ReadFromPath(s.identityPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: missing identity file %s", ErrNotInitialized, s.identityPath)
		}
		return nil, nil, fmt.Errorf("reading identity file: %w", err)
	}
	defer buffer.Close()

	var identities []age.Identity
	var recipient *age.X25519Recipient
	for _, line := range strings.Split(buffer.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing identity file %s: %w", s.identityPath, err)
		}
		identities = append(identities, identity)
		if recipient == nil {
			recipient = identity.Recipient()
		}
	}
	if len(identities) == 0 {
		return nil, nil, fmt.Errorf("identity file %s contains no age identities", s.identityPath)
	}
	return identities, recipient, nil
}

// load decrypts and parses the store file. A missing store file is
// ErrNotInitialized; an empty plaintext is an empty store.
func (s *Store) load(identities []age.Identity) (map[string]string, error) {
	file, err := os.Open(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: missing store file %s", ErrNotInitialized, s.storePath)
		}
		return nil, fmt.Errorf("opening secret store: %w", err)
	}
	defer file.Close()

	reader, err := age.Decrypt(armor.NewReader(file), identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting secret store %s: %w", s.storePath, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted secret store: %w", err)
	}
	defer secret.Zero(plaintext)

	values := map[string]string{}
	if len(plaintext) > 0 {
		if err := yaml.Unmarshal(plaintext, &values); err != nil {
			return nil, fmt.Errorf("parsing secret store contents: %w", err)
		}
	}
	return values, nil
}

// save serializes the values as YAML, encrypts them to the recipient,
// and atomically replaces the store file (0600).
func (s *Store) save(values map[string]string, recipient *age.X25519Recipient) error {
	plaintext, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("serializing secret store: %w", err)
	}
	defer secret.Zero(plaintext)

	var encrypted bytes.Buffer
	armorWriter := armor.NewWriter(&encrypted)
	encryptWriter, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := encryptWriter.Write(plaintext); err != nil {
		return fmt.Errorf("encrypting secret store: %w", err)
	}
	if err := encryptWriter.Close(); err != nil {
		return fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return fmt.Errorf("finalizing armor encoding: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	if err := writeFileAtomic(s.storePath, encrypted.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing secret store: %w", err)
	}
	return nil
}

// normalizeName validates a secret name and returns its canonical
// upper-case form.
func normalizeName(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("invalid secret name %q: must match %s", name, namePattern.String())
	}
	return strings.ToUpper(name), nil
}

// writeFileAtomic writes data to path via a temporary file in the same
// directory, fsyncs, and renames into place. Readers never observe a
// partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	return nil
}
