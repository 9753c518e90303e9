package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/crypto"
)

func generateKey(_ context.Context) error {
	fmt.Println("Generating age public and private key pair...")

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	fmt.Println("\n=== Age Key Pair Generated ===")
	fmt.Printf("Public key:  %s\n", identity.Recipient())
	fmt.Printf("Private key: %s\n", identity)
	fmt.Println("\n!! Keep your private key secure !!")

	return nil
}

// testKeys round-trips a small file through encrypt/decrypt to prove the
// private key matches the public key in the config.
func testKeys(_ context.Context, configPath, privateKeyPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	recipient, err := age.ParseX25519Recipient(cfg.AgePublicKey)
	if err != nil {
		return fmt.Errorf("failed to parse public key from config: %w", err)
	}

	identity, err := crypto.LoadIdentity(privateKeyPath)
	if err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "container_backup_key_test_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	testContent := "container-backup key pair test - " + time.Now().Format(time.RFC3339)
	testFile := filepath.Join(tempDir, "test.txt")
	if err := os.WriteFile(testFile, []byte(testContent), 0o644); err != nil {
		return fmt.Errorf("failed to create test file: %w", err)
	}

	encryptedFile := filepath.Join(tempDir, "test.txt.age")
	if err := crypto.Encrypt(testFile, encryptedFile, recipient); err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}

	decryptedFile := filepath.Join(tempDir, "test_decrypted.txt")
	if err := crypto.Decrypt(encryptedFile, decryptedFile, identity); err != nil {
		return fmt.Errorf("decryption failed: %w\nThis means the private key does not match the public key in config", err)
	}

	decryptedContent, err := os.ReadFile(decryptedFile)
	if err != nil {
		return fmt.Errorf("failed to read decrypted file: %w", err)
	}
	if string(decryptedContent) != testContent {
		return fmt.Errorf("content mismatch: decrypted content does not match original")
	}

	fmt.Println("key pair OK")
	return nil
}
