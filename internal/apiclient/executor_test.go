package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/campus-sync/internal/clients"
	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/storage/memory"
	"github.com/pribylovaa/campus-sync/internal/tokens"
)

func newStore(t *testing.T, access, refresh string) *tokens.Store {
	t.Helper()

	st := tokens.New(memory.New())
	if access != "" || refresh != "" {
		require.NoError(t, st.Save(context.Background(), models.TokenPair{AccessToken: access, RefreshToken: refresh}))
	}

	return st
}

func newExecutor(t *testing.T, h http.Handler, st *tokens.Store) (*Executor, *prometheus.Registry) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	ex := New(clients.NewHTTP(srv.Client()), st, Options{
		BaseURL:        srv.URL + "/api/",
		RefreshTimeout: 2 * time.Second,
		Registerer:     reg,
	})

	return ex, reg
}

// rotatingAPI — бэкенд, принимающий только текущий access-токен и
// выдающий новую пару на /auth/refresh-token.
type rotatingAPI struct {
	mu      sync.Mutex
	valid   string
	next    models.TokenPair
	refresh atomic.Int32

	// refreshStatus != 0 — вернуть этот статус вместо новой пары.
	refreshStatus int
	// gate != nil — refresh ждёт закрытия gate (entered сигналит о входе).
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (a *rotatingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/refresh-token":
		a.refresh.Add(1)

		var in refreshRequest
		_ = json.NewDecoder(r.Body).Decode(&in)

		if a.entered != nil {
			a.once.Do(func() { close(a.entered) })
		}
		if a.gate != nil {
			<-a.gate
		}
		if a.refreshStatus != 0 {
			http.Error(w, "invalid refresh token", a.refreshStatus)
			return
		}

		a.mu.Lock()
		a.valid = a.next.AccessToken
		a.mu.Unlock()

		_ = json.NewEncoder(w).Encode(refreshResponse{AccessToken: a.next.AccessToken, RefreshToken: a.next.RefreshToken})
	default:
		a.mu.Lock()
		valid := a.valid
		a.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}

	metric:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}

	return 0
}

func TestExecute_AttachesTokenAndDecodes(t *testing.T) {
	t.Parallel()

	st := newStore(t, "a1", "r1")
	ex, reg := newExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"events":[{"id":"e1"}],"hasMore":true}`))
	}), st)

	var out struct {
		Events []struct {
			ID string `json:"id"`
		} `json:"events"`
		HasMore bool `json:"hasMore"`
	}
	err := ex.Execute(context.Background(), Call{
		Method: http.MethodGet,
		Path:   "/events",
		Query:  url.Values{"page": {"2"}},
		Auth:   true,
	}, &out)
	require.NoError(t, err)
	require.True(t, out.HasMore)
	require.Len(t, out.Events, 1)
	require.Equal(t, "e1", out.Events[0].ID)

	require.Equal(t, 1.0, counterValue(t, reg, "campus_sync_api_requests_total", map[string]string{"method": "GET", "code": "200"}))
}

func TestExecute_UnauthenticatedCallHasNoCredentialHeader(t *testing.T) {
	t.Parallel()

	st := newStore(t, "a1", "r1")
	ex, _ := newExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.JSONEq(t, `{"email":"ann@example.com"}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	}), st)

	err := ex.Execute(context.Background(), Call{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": "ann@example.com"},
	}, nil)
	require.NoError(t, err)
}

func TestExecute_ResponseClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		out    any
		check  func(t *testing.T, err error)
	}{
		{
			name:   "204 is success without payload",
			status: http.StatusNoContent,
			out:    &map[string]any{},
			check:  func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name:   "non-2xx surfaces status and body",
			status: http.StatusConflict,
			body:   "event already exists",
			check: func(t *testing.T, err error) {
				var he *apperrors.HTTPError
				require.ErrorAs(t, err, &he)
				require.Equal(t, http.StatusConflict, he.Status)
				require.Contains(t, he.Body, "event already exists")
			},
		},
		{
			name:   "unparsable success body",
			status: http.StatusOK,
			body:   "<html>",
			out:    &map[string]any{},
			check: func(t *testing.T, err error) {
				var me *apperrors.MalformedResponseError
				require.ErrorAs(t, err, &me)
			},
		},
		{
			name:   "unparsable success body without target",
			status: http.StatusOK,
			body:   "",
			check: func(t *testing.T, err error) {
				var me *apperrors.MalformedResponseError
				require.ErrorAs(t, err, &me)
			},
		},
		{
			name:   "401 on unauthenticated call is plain http error",
			status: http.StatusUnauthorized,
			body:   "bad code",
			check: func(t *testing.T, err error) {
				require.Equal(t, http.StatusUnauthorized, apperrors.Status(err))
				require.False(t, apperrors.IsAuthExpired(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ex, _ := newExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), newStore(t, "", ""))

			tt.check(t, ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/x"}, tt.out))
		})
	}
}

func TestExecute_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	ex := New(clients.NewHTTP(nil), newStore(t, "", ""), Options{BaseURL: base})

	err := ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/events"}, nil)

	var ne *apperrors.NetworkError
	require.ErrorAs(t, err, &ne)
	require.Equal(t, "network unavailable", apperrors.Message(err))
}

func TestExecute_UnserializableBodyIsValidationError(t *testing.T) {
	t.Parallel()

	ex := New(clients.NewHTTP(nil), newStore(t, "", ""), Options{BaseURL: "http://unused"})

	err := ex.Execute(context.Background(), Call{Method: http.MethodPost, Path: "/events", Body: make(chan int)}, nil)

	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestExecute_RefreshesAndRetriesOnce(t *testing.T) {
	t.Parallel()

	api := &rotatingAPI{valid: "a2", next: models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}
	st := newStore(t, "a1", "r1")
	ex, reg := newExecutor(t, api, st)

	require.NoError(t, ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/user/me", Auth: true}, nil))

	pair, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, pair)
	require.EqualValues(t, 1, api.refresh.Load())
	require.Equal(t, 1.0, counterValue(t, reg, "campus_sync_api_token_refresh_total", map[string]string{"result": "ok"}))
}

func TestExecute_RetryStillUnauthorizedIsAuthExpired(t *testing.T) {
	t.Parallel()

	// Сервер выдаёт пару, но продолжает отвергать любой токен.
	api := &rotatingAPI{valid: "never", next: models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}
	st := newStore(t, "a1", "r1")
	ex, _ := newExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.ServeHTTP(w, r)
		api.mu.Lock()
		api.valid = "never"
		api.mu.Unlock()
	}), st)

	err := ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/user/me", Auth: true}, nil)
	require.ErrorIs(t, err, apperrors.ErrAuthExpired)
	require.EqualValues(t, 1, api.refresh.Load())

	// Пара от успешного refresh остаётся.
	access, err := st.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a2", access)
}

func TestExecute_RefreshRejectedClearsCredentials(t *testing.T) {
	t.Parallel()

	api := &rotatingAPI{valid: "a2", refreshStatus: http.StatusUnauthorized}
	st := newStore(t, "a1", "r1")
	ex, _ := newExecutor(t, api, st)

	err := ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/chats", Auth: true}, nil)
	require.ErrorIs(t, err, apperrors.ErrAuthExpired)
	require.Equal(t, "session expired, please sign in again", apperrors.Message(err))

	pair, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.TokenPair{}, pair)
}

func TestExecute_MissingRefreshTokenClearsCredentials(t *testing.T) {
	t.Parallel()

	mem := memory.New()
	require.NoError(t, mem.SetItem(context.Background(), tokens.KeyAccessToken, "a1"))
	st := tokens.New(mem)

	api := &rotatingAPI{valid: "a2", next: models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}
	ex, _ := newExecutor(t, api, st)

	err := ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/chats", Auth: true}, nil)
	require.ErrorIs(t, err, apperrors.ErrAuthExpired)
	require.EqualValues(t, 0, api.refresh.Load())
	require.Equal(t, 0, mem.Len())
}

// funcTransport — Transport из функции.
type funcTransport func(ctx context.Context, req *clients.Request) (*clients.Response, error)

func (f funcTransport) Send(ctx context.Context, req *clients.Request) (*clients.Response, error) {
	return f(ctx, req)
}

func TestExecute_RefreshNetworkFailureKeepsCredentials(t *testing.T) {
	t.Parallel()

	st := newStore(t, "a1", "r1")
	tr := funcTransport(func(_ context.Context, req *clients.Request) (*clients.Response, error) {
		if req.URL == "http://api/auth/refresh-token" {
			return nil, errors.New("connection reset")
		}
		return &clients.Response{Status: http.StatusUnauthorized}, nil
	})
	ex := New(tr, st, Options{BaseURL: "http://api"})

	err := ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/chats", Auth: true}, nil)
	require.False(t, apperrors.IsAuthExpired(err))

	var ne *apperrors.NetworkError
	require.ErrorAs(t, err, &ne)

	pair, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.TokenPair{AccessToken: "a1", RefreshToken: "r1"}, pair)
}

func TestExecute_MalformedRefreshBodyClearsCredentials(t *testing.T) {
	t.Parallel()

	st := newStore(t, "a1", "r1")
	tr := funcTransport(func(_ context.Context, req *clients.Request) (*clients.Response, error) {
		if req.URL == "http://api/auth/refresh-token" {
			return &clients.Response{Status: http.StatusOK, Body: []byte(`{"accessToken":`)}, nil
		}
		return &clients.Response{Status: http.StatusUnauthorized}, nil
	})
	ex := New(tr, st, Options{BaseURL: "http://api"})

	err := ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/chats", Auth: true}, nil)
	require.ErrorIs(t, err, apperrors.ErrAuthExpired)

	pair, err := st.Load(context.Background())
	require.NoError(t, err)
	require.False(t, pair.Complete())
}

func TestExecute_ConcurrentExpiryRefreshesExactlyOnce(t *testing.T) {
	t.Parallel()

	const n = 16

	api := &rotatingAPI{
		valid:   "a2",
		next:    models.TokenPair{AccessToken: "a2", RefreshToken: "r2"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	st := newStore(t, "a1", "r1")
	ex, _ := newExecutor(t, api, st)

	var (
		wg   sync.WaitGroup
		errs = make(chan error, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/events", Auth: true}, nil)
		}()
	}

	<-api.entered
	time.Sleep(50 * time.Millisecond)
	close(api.gate)

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, api.refresh.Load())
}

func TestExecute_ConcurrentExpiryAllFailWhenRefreshRejected(t *testing.T) {
	t.Parallel()

	const n = 16

	api := &rotatingAPI{
		valid:         "a2",
		refreshStatus: http.StatusUnauthorized,
		gate:          make(chan struct{}),
		entered:       make(chan struct{}),
	}
	st := newStore(t, "a1", "r1")
	ex, reg := newExecutor(t, api, st)

	var (
		wg   sync.WaitGroup
		errs = make(chan error, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/chats", Auth: true}, nil)
		}()
	}

	<-api.entered
	time.Sleep(50 * time.Millisecond)
	close(api.gate)

	wg.Wait()
	close(errs)

	for err := range errs {
		require.True(t, apperrors.IsAuthExpired(err), "got %v", err)
	}
	require.EqualValues(t, 1, api.refresh.Load())
	require.Equal(t, 1.0, counterValue(t, reg, "campus_sync_api_token_refresh_total", map[string]string{"result": "rejected"}))

	pair, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.TokenPair{}, pair)
}

func TestExecute_CanceledLeaderDoesNotPoisonFollowers(t *testing.T) {
	t.Parallel()

	api := &rotatingAPI{
		valid:   "a2",
		next:    models.TokenPair{AccessToken: "a2", RefreshToken: "r2"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	st := newStore(t, "a1", "r1")
	ex, _ := newExecutor(t, api, st)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		leaderErr <- ex.Execute(leaderCtx, Call{Method: http.MethodGet, Path: "/events", Auth: true}, nil)
	}()

	<-api.entered

	followerErr := make(chan error, 1)
	go func() {
		followerErr <- ex.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/chats", Auth: true}, nil)
	}()

	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(api.gate)
	require.NoError(t, <-followerErr)
	require.EqualValues(t, 1, api.refresh.Load())

	access, err := st.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a2", access)
}

func TestRefresh_SharedWithConcurrentCallers(t *testing.T) {
	t.Parallel()

	api := &rotatingAPI{
		valid:   "a2",
		next:    models.TokenPair{AccessToken: "a2", RefreshToken: "r2"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	ex, _ := newExecutor(t, api, newStore(t, "a1", "r1"))

	first := make(chan error, 1)
	go func() { first <- ex.Refresh(context.Background()) }()
	<-api.entered

	second := make(chan error, 1)
	go func() { second <- ex.Refresh(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	close(api.gate)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	require.EqualValues(t, 1, api.refresh.Load())
}
