package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pountzas/plix/internal/config"
	"github.com/pountzas/plix/internal/tmdb"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckMetadataAPI verifies that the metadata API is reachable and the key
// is valid. Single attempt, 10-second timeout.
func CheckMetadataAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "Metadata API"

	if cfg.TMDB.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := []tmdb.Option{tmdb.WithRateFloor(0)}
	if cfg.TMDB.AuthMode == "bearer" {
		opts = append(opts, tmdb.WithBearerAuth())
	}
	client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language, opts...)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	if _, err := client.SearchMovie(checkCtx, "the"); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

func summarizeAPIError(err error) string {
	switch {
	case errors.Is(err, tmdb.ErrAuth):
		return "auth failed (invalid api key)"
	case errors.Is(err, tmdb.ErrThrottled):
		return "API throttling requests, try again later"
	case errors.Is(err, tmdb.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		return "health check timed out (API unresponsive)"
	default:
		return err.Error()
	}
}
