package utils

import (
	"context"
	"crypto/rand"
	"log"
	"math"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parnurzeal/gorequest"
	"golang.org/x/xerrors"
)

const requestTimeout = 60 * time.Second

func CacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	dir := filepath.Join(cacheDir, "advisory-aggregator")
	return dir
}

// SnapshotPath is where the last aggregation result is persisted inside a cache directory.
func SnapshotPath(cacheDir string) string {
	return filepath.Join(cacheDir, "snapshot.json")
}

// CollapseSpace folds every run of whitespace into a single space.
func CollapseSpace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// Wait is the default backoff between retries: i^2 seconds plus up to 9 seconds of jitter.
func Wait(i int) time.Duration {
	sleep := math.Pow(float64(i), 2) + float64(RandInt()%10)
	return time.Duration(sleep) * time.Second
}

// FetchURL returns HTTP response body with retry.
// A retry of 0 performs exactly one request.
func FetchURL(ctx context.Context, url string, headers map[string]string, retry int) (res []byte, err error) {
	for i := 0; i <= retry; i++ {
		if i > 0 {
			wait := Wait(i)
			log.Printf("retry after %s\n", wait)
			select {
			case <-ctx.Done():
				return nil, xerrors.Errorf("failed to fetch URL: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
		if ctx.Err() != nil {
			return nil, xerrors.Errorf("failed to fetch URL: %w", ctx.Err())
		}
		res, err = fetchURL(url, headers)
		if err == nil {
			return res, nil
		}
	}
	return nil, xerrors.Errorf("failed to fetch URL: %w", err)
}

func RandInt() int {
	seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	return int(seed.Int64())
}

func fetchURL(url string, headers map[string]string) ([]byte, error) {
	req := gorequest.New().Get(url).Timeout(requestTimeout)
	for k, v := range headers {
		req.Set(k, v)
	}
	resp, body, errs := req.Type("text").EndBytes()
	if len(errs) > 0 {
		return nil, xerrors.Errorf("HTTP error. url: %s, err: %w", url, errs[0])
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("HTTP error. status code: %d, url: %s", resp.StatusCode, url)
	}
	return body, nil
}

func LookupEnv(key, defaultValue string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultValue
}
