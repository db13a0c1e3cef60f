package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"beatbrowser/internal/config"
	"beatbrowser/pkg/models"

	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "beats"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "beats", "one.wav"), []byte("RIFFdata"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFileFetcher(dir, 0)
	ctx := context.Background()

	testCases := []struct {
		name     string
		locator  string
		expected error
	}{
		{"existing", "beats/one.wav", nil},
		{"leading slash", "/beats/one.wav", nil},
		{"missing", "beats/two.wav", models.ErrSourceUnreachable},
		{"traversal stays inside", "../../etc/passwd", models.ErrSourceUnreachable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := f.Fetch(ctx, tc.locator)
			if tc.expected == nil {
				if err != nil {
					t.Fatalf("Fetch: %v", err)
				}
				if string(data) != "RIFFdata" {
					t.Errorf("Unexpected data %q", data)
				}
				return
			}
			if !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestFileFetcherSizeLimit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "big.wav"), make([]byte, 64), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileFetcher(dir, 16).Fetch(context.Background(), "big.wav")
	if models.Classify(err) != models.FailureDecodeUnsupported {
		t.Errorf("Expected oversized file to be undecodable, got %v", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/beats/ok.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ID3"))
	})
	mux.HandleFunc("/beats/private.mp3", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, 5*time.Second, 0)
	ctx := context.Background()

	testCases := []struct {
		name     string
		locator  string
		expected models.FailureKind
	}{
		{"relative", "beats/ok.mp3", models.FailureNone},
		{"absolute", srv.URL + "/beats/ok.mp3", models.FailureNone},
		{"forbidden", "beats/private.mp3", models.FailureCrossOrigin},
		{"missing", "beats/gone.mp3", models.FailureSourceUnreachable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := f.Fetch(ctx, tc.locator)
			if got := models.Classify(err); got != tc.expected {
				t.Fatalf("Expected %q, got %q (%v)", tc.expected, got, err)
			}
			if err == nil && string(data) != "ID3" {
				t.Errorf("Unexpected data %q", data)
			}
		})
	}
}

func TestHTTPFetcherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(addr, time.Second, 0).Fetch(context.Background(), "x.mp3")
	if !errors.Is(err, models.ErrSourceUnreachable) {
		t.Errorf("Expected unreachable, got %v", err)
	}
}

func TestRouter(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "local.wav"), []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote"))
	}))
	defer srv.Close()

	ctx := context.Background()

	t.Run("LocalByDefault", func(t *testing.T) {
		router := NewRouter(NewFileFetcher(dir, 0), NewHTTPFetcher("", time.Second, 0), nil, quietLogger())
		data, err := router.Fetch(ctx, "local.wav")
		if err != nil || string(data) != "local" {
			t.Errorf("Expected local bytes, got %q, %v", data, err)
		}
		data, err = router.Fetch(ctx, srv.URL+"/x.mp3")
		if err != nil || string(data) != "remote" {
			t.Errorf("Expected remote bytes, got %q, %v", data, err)
		}
		if path, ok := router.LocalPath("local.wav"); !ok || filepath.Base(path) != "local.wav" {
			t.Errorf("Expected local path, got %q", path)
		}
		if _, ok := router.LocalPath(srv.URL + "/x.mp3"); ok {
			t.Error("Expected no local path for remote locator")
		}
	})

	t.Run("BaseURLWins", func(t *testing.T) {
		router := NewRouter(NewFileFetcher(dir, 0), NewHTTPFetcher(srv.URL, time.Second, 0), nil, quietLogger())
		data, err := router.Fetch(ctx, "local.wav")
		if err != nil || string(data) != "remote" {
			t.Errorf("Expected origin bytes, got %q, %v", data, err)
		}
	})

	t.Run("BucketWithoutConfig", func(t *testing.T) {
		router := NewRouter(NewFileFetcher(dir, 0), nil, nil, quietLogger())
		if _, err := router.Fetch(ctx, "r2://beats/one.mp3"); !errors.Is(err, models.ErrSourceUnreachable) {
			t.Errorf("Expected unreachable, got %v", err)
		}
		if _, err := router.Fetch(ctx, ""); !errors.Is(err, models.ErrSourceUnreachable) {
			t.Errorf("Expected unreachable for empty locator, got %v", err)
		}
	})
}

func TestR2Locators(t *testing.T) {
	f, err := NewR2Fetcher(config.R2Config{
		Endpoint:  "localhost:9000",
		Bucket:    "beats",
		AccessKey: "key",
		SecretKey: "secret",
	}, 0, quietLogger())
	if err != nil {
		t.Fatalf("NewR2Fetcher: %v", err)
	}

	testCases := []struct {
		locator string
		bucket  string
		key     string
		ok      bool
	}{
		{"r2://trap/one.mp3", "beats", "trap/one.mp3", true},
		{"s3://other/two.wav", "other", "two.wav", true},
		{"r2://", "", "", false},
		{"s3://only-bucket", "", "", false},
		{"beats/one.mp3", "", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.locator, func(t *testing.T) {
			bucket, key, err := f.parse(tc.locator)
			if (err == nil) != tc.ok {
				t.Fatalf("Unexpected error state: %v", err)
			}
			if bucket != tc.bucket || key != tc.key {
				t.Errorf("Expected %s/%s, got %s/%s", tc.bucket, tc.key, bucket, key)
			}
		})
	}
}

func TestClassifyObjectError(t *testing.T) {
	testCases := []struct {
		code     string
		expected models.FailureKind
	}{
		{"AccessDenied", models.FailureCrossOrigin},
		{"NoSuchKey", models.FailureSourceUnreachable},
		{"InternalError", models.FailureSourceUnreachable},
	}

	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			err := classifyObjectError("r2://x", minio.ErrorResponse{Code: tc.code})
			if got := models.Classify(err); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
