package fragment

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// BuiltinScheme prefixes refs that name one of the embedded default fragments
const BuiltinScheme = "builtin:"

//go:embed assets/*.html
var builtinAssets embed.FS

// Builtin exposes the default card fragments shipped with the binary
func Builtin() fs.FS {
	sub, err := fs.Sub(builtinAssets, "assets")
	if err != nil {
		return builtinAssets
	}
	return sub
}

// Fetch reads the raw fragment markup behind ref. Refs are http(s) URLs,
// builtin:<name> or local file paths.
func Fetch(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return fetchHTTP(ctx, client, ref)
	case strings.HasPrefix(ref, BuiltinScheme):
		return fs.ReadFile(Builtin(), strings.TrimPrefix(ref, BuiltinScheme))
	case ref == "":
		return nil, errors.New("empty fragment ref")
	default:
		return os.ReadFile(ref)
	}
}

func fetchHTTP(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
