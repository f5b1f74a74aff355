// Package auth implements the HTTP Basic gate in front of the prediction endpoint.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialTable maps usernames to bcrypt hashes. It is read-only after construction.
type CredentialTable struct {
	hashes map[string][]byte
	// dummy is compared against for unknown users. Its cost is the highest
	// cost in hashes so an unknown user takes as long as the slowest known one.
	dummy []byte
}

const dummyPassword = "calibration-engine-unknown-user"

func newTable() CredentialTable {
	return CredentialTable{hashes: make(map[string][]byte)}
}

// ParseCredentials parses "user:hash" entries separated by commas or newlines.
// Blank entries and lines starting with '#' are ignored.
func ParseCredentials(s string) (CredentialTable, error) {
	t, err := parseCredentials(s)
	if err != nil {
		return CredentialTable{}, err
	}
	return t.withDummy()
}

func parseCredentials(s string) (CredentialTable, error) {
	t := newTable()
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	for _, f := range fields {
		if err := t.add(f); err != nil {
			return CredentialTable{}, err
		}
	}
	return t, nil
}

// ReadCredentials parses htpasswd-style "user:hash" lines.
func ReadCredentials(r io.Reader) (CredentialTable, error) {
	t, err := readCredentials(r)
	if err != nil {
		return CredentialTable{}, err
	}
	return t.withDummy()
}

func readCredentials(r io.Reader) (CredentialTable, error) {
	t := newTable()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if err := t.add(sc.Text()); err != nil {
			return CredentialTable{}, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return CredentialTable{}, fmt.Errorf("read credentials: %w", err)
	}
	return t, nil
}

// LoadCredentials merges the inline CREDENTIALS list and the optional credentials file.
func LoadCredentials(inline, file string) (CredentialTable, error) {
	t, err := parseCredentials(inline)
	if err != nil {
		return CredentialTable{}, fmt.Errorf("CREDENTIALS: %w", err)
	}
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return CredentialTable{}, fmt.Errorf("CREDENTIALS_FILE: %w", err)
		}
		defer func() { _ = f.Close() }()
		ft, err := readCredentials(f)
		if err != nil {
			return CredentialTable{}, fmt.Errorf("CREDENTIALS_FILE %s: %w", file, err)
		}
		for user, hash := range ft.hashes {
			if _, dup := t.hashes[user]; dup {
				return CredentialTable{}, fmt.Errorf("user %q defined in both CREDENTIALS and CREDENTIALS_FILE", user)
			}
			t.hashes[user] = hash
		}
	}
	if t.Len() == 0 {
		return CredentialTable{}, errors.New("credential table is empty")
	}
	return t.withDummy()
}

// withDummy returns t with a dummy hash at the highest cost used by its entries.
func (t CredentialTable) withDummy() (CredentialTable, error) {
	cost := bcrypt.MinCost
	for user, hash := range t.hashes {
		c, err := bcrypt.Cost(hash)
		if err != nil {
			return CredentialTable{}, fmt.Errorf("user %q: %w", user, err)
		}
		cost = max(cost, c)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return CredentialTable{}, fmt.Errorf("dummy hash: %w", err)
	}
	t.dummy = dummy
	return t, nil
}

func (t CredentialTable) add(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" || strings.HasPrefix(entry, "#") {
		return nil
	}
	user, hash, ok := strings.Cut(entry, ":")
	if !ok || user == "" || hash == "" {
		return fmt.Errorf("malformed credential entry (want user:bcrypt-hash)")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("user %q: hash is not bcrypt: %w", user, err)
	}
	if _, dup := t.hashes[user]; dup {
		return fmt.Errorf("duplicate user %q", user)
	}
	t.hashes[user] = []byte(hash)
	return nil
}

func (t CredentialTable) Len() int { return len(t.hashes) }

// Verify reports whether username exists and password matches its hash.
// Username comparison is exact and case-sensitive.
func (t CredentialTable) Verify(username, password string) bool {
	hash, ok := t.hashes[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(t.dummy, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// HashPassword returns a bcrypt hash suitable for a credential entry.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
