package server

import (
	"fmt"
	"net/url"
	"os"
)

func dbDSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getenvDefault("DB_HOST", "127.0.0.1")
	port := getenvDefault("DB_PORT", "5438")
	user := getenvDefault("DB_USER", "app")
	pass := getenvDefault("DB_PASSWORD", "app")
	name := getenvDefault("DB_NAME", "board_multisig")
	sslmode := getenvDefault("DB_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// storeKindFromEnv picks the ledger backend. MULTISIG_STORE wins; otherwise a
// configured DATABASE_URL selects postgres.
func storeKindFromEnv() (string, error) {
	switch v := os.Getenv("MULTISIG_STORE"); v {
	case "memory", "postgres":
		return v, nil
	case "":
		if os.Getenv("DATABASE_URL") != "" {
			return "postgres", nil
		}
		return "memory", nil
	default:
		return "", fmt.Errorf("server: unsupported MULTISIG_STORE %q", v)
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
