package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arcanaland/cardwatch/internal/card"
	"github.com/arcanaland/cardwatch/internal/fragment"
	"github.com/arcanaland/cardwatch/internal/poller"
	"github.com/arcanaland/cardwatch/internal/render"
)

type fakeController struct {
	renderer *render.Renderer
	state    poller.State
	refresh  func(ctx context.Context) error
}

func (f *fakeController) Renderer() *render.Renderer { return f.renderer }
func (f *fakeController) State() poller.State        { return f.state }
func (f *fakeController) Refresh(ctx context.Context) error {
	if f.refresh == nil {
		return nil
	}
	return f.refresh(ctx)
}

func newFake(t *testing.T) *fakeController {
	t.Helper()
	store := fragment.NewStore(nil)
	require.NoError(t, store.Load(context.Background(), map[card.Status]string{
		card.StatusOne: fragment.BuiltinScheme + "card_1.html",
		card.StatusTwo: fragment.BuiltinScheme + "card_2.html",
	}))

	r := render.New(store, "cards-container")
	r.Render([]card.Card{
		{Status: card.StatusTwo, Name: "<b>Satoshi</b>", Coins: card.CoinsFromString("BTC")},
	})
	return &fakeController{renderer: r, state: poller.StateReady}
}

func do(t *testing.T, h http.Handler, method, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestPage(t *testing.T) {
	srv := New(newFake(t), Options{
		ContainerID: "cards-container",
		Reload:      5 * time.Second,
		Logger:      zaptest.NewLogger(t),
	})

	resp, body := do(t, srv.Handler(), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `<div id="cards-container">`)
	assert.Contains(t, body, `.card.flipped .card-back`)
	assert.Contains(t, body, `&lt;b&gt;Satoshi&lt;/b&gt;`)
	assert.NotContains(t, body, `<b>Satoshi</b>`)
	assert.Contains(t, body, `"cards-container"`)
	assert.Contains(t, body, `5000`)
}

func TestPage_NoReloadScript(t *testing.T) {
	srv := New(newFake(t), Options{ContainerID: "cards-container"})

	_, body := do(t, srv.Handler(), http.MethodGet, "/")
	assert.NotContains(t, body, "<script>")
}

func TestCards(t *testing.T) {
	srv := New(newFake(t), Options{ContainerID: "cards-container"})

	resp, body := do(t, srv.Handler(), http.MethodGet, "/cards")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(body, `<div id="cards-container">`), body)
	assert.Contains(t, body, `onclick="this.classList.toggle(&#39;flipped&#39;)"`)
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name   string
		state  poller.State
		err    error
		status int
	}{
		{name: "ok", state: poller.StateReady, status: http.StatusNoContent},
		{name: "in flight", state: poller.StateReady, err: poller.ErrCycleInFlight, status: http.StatusConflict},
		{name: "fetch failed", state: poller.StateReady, err: errors.New("api status 500"), status: http.StatusBadGateway},
		{name: "not ready", state: poller.StateFailed, err: errors.New("poller is failed"), status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake(t)
			fake.state = tt.state
			calls := 0
			fake.refresh = func(context.Context) error {
				calls++
				return tt.err
			}

			resp, _ := do(t, New(fake, Options{}).Handler(), http.MethodPost, "/refresh")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestRefresh_MethodNotAllowed(t *testing.T) {
	resp, _ := do(t, New(newFake(t), Options{}).Handler(), http.MethodGet, "/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	fake := newFake(t)
	h := New(fake, Options{}).Handler()

	resp, body := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body)

	fake.state = poller.StateTemplatesLoading
	resp, body = do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "templates-loading", body)
}
