package main

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// parseFederatedSecrets reads "provider=secret,provider=secret"
func parseFederatedSecrets(s string) (map[string][]byte, error) {
	secrets := make(map[string][]byte)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, secret, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || secret == "" {
			return nil, fmt.Errorf("federated secret %q must look like provider=secret", pair)
		}
		secrets[name] = []byte(secret)
	}
	return secrets, nil
}

// sessionKey returns the configured key, or a random one that only lives as long
// as the process
func sessionKey(configured string) ([]byte, bool, error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generating session key: %w", err)
	}
	return key, true, nil
}
