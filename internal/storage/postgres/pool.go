package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"library/internal/config"
	"library/internal/logger"
)

const (
	SSLModeVerifyFull = "verify-full"

	pingTimeout = 5 * time.Second
)

// Connect builds a pool for cfg, tracing queries into l, and makes sure the database answers.
func Connect(ctx context.Context, cfg config.Postgres, l *slog.Logger) (*pgxpool.Pool, error) {
	dsn, err := withSSL(cfg.Url, cfg.SSLMode, cfg.CACertPath)
	if err != nil {
		return nil, err
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	pcfg.ConnConfig.Tracer = logger.NewPGXTracer(l)
	// recycle dead connections before handing them out
	pcfg.HealthCheckPeriod = time.Minute

	pg, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err = pg.Ping(pingCtx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return pg, nil
}

// withSSL sets sslmode (and sslrootcert for verifying modes) on dsn, which may be
// either a URL or a keyword/value connection string. pgx itself loads the root certificate.
func withSSL(dsn, mode, rootCert string) (string, error) {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return dsn, nil
	}

	params := [][2]string{{"sslmode", mode}}
	if strings.HasPrefix(mode, "verify-") {
		if rootCert == "" {
			return "", fmt.Errorf("sslmode %s needs CA_CERT_PATH", mode)
		}
		params = append(params, [2]string{"sslrootcert", rootCert})
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parsing DATABASE_URL: %w", err)
		}

		q := u.Query()
		for _, p := range params {
			q.Set(p[0], p[1])
		}
		u.RawQuery = q.Encode()

		return u.String(), nil
	}

	sb := strings.Builder{}
	sb.WriteString(strings.TrimSpace(dsn))
	for _, p := range params {
		sb.WriteString(" " + p[0] + "='" + strings.ReplaceAll(p[1], "'", `\'`) + "'")
	}

	return sb.String(), nil
}
