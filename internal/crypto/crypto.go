package crypto

import (
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/zeebo/blake3"
)

func Encrypt(inputFile, outputFile string, recipient age.Recipient) error {
	in, err := os.Open(inputFile)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	w, err := age.Encrypt(out, recipient)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, in); err != nil {
		return err
	}

	return w.Close()
}

func Decrypt(inputFile, outputFile string, identity age.Identity) error {
	in, err := os.Open(inputFile)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	r, err := age.Decrypt(in, identity)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, r); err != nil {
		return err
	}

	return nil
}

// EncryptArchive encrypts a staged archive, hashes the result, and removes
// the plaintext original. Returns the encrypted path and its BLAKE3 hash.
func EncryptArchive(archivePath string, recipient age.Recipient) (string, string, error) {
	encryptedPath := archivePath + ".age"
	if err := Encrypt(archivePath, encryptedPath, recipient); err != nil {
		return "", "", fmt.Errorf("age encryption failed: %w", err)
	}

	hash, err := BLAKE3File(encryptedPath)
	if err != nil {
		return "", "", fmt.Errorf("BLAKE3 hash failed: %w", err)
	}

	if err := os.Remove(archivePath); err != nil {
		return "", "", fmt.Errorf("failed to remove plaintext archive: %w", err)
	}

	return encryptedPath, hash, nil
}

// BLAKE3File computes the BLAKE3 hash of a file.
func BLAKE3File(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// LoadIdentity reads an age private key file.
func LoadIdentity(path string) (age.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return identity, nil
}
