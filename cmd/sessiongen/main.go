package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/af-corp/pulseboard/internal/session"
)

func main() {
	user := flag.String("user", "", "portal user name (required)")
	env := flag.String("env", "prod", "environment prefix")
	expires := flag.String("expires", "30d", "expiry duration (e.g., 30d, 720h)")
	creds := flag.String("creds", "", "comma-separated provider credentials as provider:identity:token (e.g., github:gh-casey:ghp_abc,jira:casey@acme:atl_xyz)")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	flag.Parse()

	if *user == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -user is required")
		os.Exit(1)
	}

	rawToken, err := session.GenerateToken(*env)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	tokenHash := session.HashToken(rawToken)
	tokenPrefix := session.TokenPrefix(rawToken)

	dur, err := session.ParseDuration(*expires)
	if err != nil {
		log.Fatalf("invalid expires: %v", err)
	}
	expiresAt := time.Now().Add(dur)

	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		host := envOrDefault("DB_HOST", "localhost")
		port := envOrDefault("DB_PORT", "5432")
		u := envOrDefault("DB_USER", "pulseboard")
		pass := envOrDefault("DB_PASSWORD", "pulseboard-dev")
		dbname := envOrDefault("DB_NAME", "pulseboard")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", u, pass, host, port, dbname)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	var sessionID string
	err = conn.QueryRow(ctx, `
		INSERT INTO sessions (token_hash, token_prefix, user_name, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, tokenHash, tokenPrefix, *user, expiresAt).Scan(&sessionID)
	if err != nil {
		log.Fatalf("failed to insert session: %v", err)
	}

	var connected []string
	if *creds != "" {
		for _, spec := range strings.Split(*creds, ",") {
			parts := strings.SplitN(spec, ":", 3)
			if len(parts) != 3 {
				log.Fatalf("invalid credential spec %q (want provider:identity:token)", spec)
			}
			provider, identity, token := parts[0], parts[1], parts[2]
			_, err = conn.Exec(ctx, `
				INSERT INTO provider_credentials (session_id, provider, identity, token)
				VALUES ($1, $2, $3, $4)
			`, sessionID, provider, identity, token)
			if err != nil {
				log.Fatalf("failed to insert credential for %s: %v", provider, err)
			}
			connected = append(connected, provider)
		}
	}

	fmt.Println("=== PulseBoard Session Generated ===")
	fmt.Println()
	fmt.Printf("  Session ID:   %s\n", sessionID)
	fmt.Printf("  Token Prefix: %s\n", tokenPrefix)
	fmt.Printf("  User:         %s\n", *user)
	if len(connected) > 0 {
		fmt.Printf("  Providers:    %s\n", strings.Join(connected, ", "))
	}
	fmt.Printf("  Expires:      %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Session token (save this — it will NOT be shown again):")
	fmt.Printf("  %s\n", rawToken)
	fmt.Println()
	fmt.Println("====================================")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
