package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	size        int
	refreshedAt time.Time
	refreshErr  error
	refreshed   int
}

func (f *fakeCatalog) Size() int                         { return f.size }
func (f *fakeCatalog) RefreshedAt() time.Time            { return f.refreshedAt }
func (f *fakeCatalog) Refresh(ctx context.Context) error { f.refreshed++; return f.refreshErr }

type fakeContexts struct{ n int }

func (f fakeContexts) Len() int { return f.n }

type fakeGateway struct{ err error }

func (f fakeGateway) Probe(ctx context.Context) error { return f.err }

func signAdminToken(t *testing.T, secret, subject string, expiry time.Time) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	claims := jwt.Claims{
		Subject: subject,
		Expiry:  jwt.NewNumericDate(expiry),
	}
	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	require.NoError(t, err)
	return token
}

func newTestServer(cat *fakeCatalog, secret string) *Server {
	return New(Options{
		ListenAddr:  ":0",
		AdminSecret: secret,
		Catalog:     cat,
		Contexts:    fakeContexts{n: 3},
		Gateway:     fakeGateway{},
	})
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeCatalog{}, "")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestStatus(t *testing.T) {
	cat := &fakeCatalog{size: 120, refreshedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	s := newTestServer(cat, "")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		UptimeSeconds  int    `json:"uptime_seconds"`
		StartedAt      string `json:"started_at"`
		ActiveContexts int    `json:"active_contexts"`
		Gateway        string `json:"gateway"`
		Catalog        struct {
			Plants      int    `json:"plants"`
			RefreshedAt string `json:"refreshed_at"`
		} `json:"catalog"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, 120, status.Catalog.Plants)
	require.Equal(t, "2024-05-10T12:00:00Z", status.Catalog.RefreshedAt)
	require.Equal(t, 3, status.ActiveContexts)
	require.Equal(t, "ok", status.Gateway)
	require.NotEmpty(t, status.StartedAt)
}

func TestAdminRefresh(t *testing.T) {
	const secret = "test-admin-secret"

	for scenario, tc := range map[string]struct {
		secret     string
		token      string
		refreshErr error
		wantCode   int
		wantRuns   int
	}{
		"valid token refreshes": {
			secret:   secret,
			token:    "valid",
			wantCode: http.StatusOK,
			wantRuns: 1,
		},
		"missing token": {
			secret:   secret,
			wantCode: http.StatusUnauthorized,
		},
		"wrong signature": {
			secret:   secret,
			token:    "wrong-secret",
			wantCode: http.StatusUnauthorized,
		},
		"expired token": {
			secret:   secret,
			token:    "expired",
			wantCode: http.StatusUnauthorized,
		},
		"wrong subject": {
			secret:   secret,
			token:    "wrong-subject",
			wantCode: http.StatusUnauthorized,
		},
		"no secret disables admin": {
			secret:   "",
			token:    "valid",
			wantCode: http.StatusForbidden,
		},
		"refresh failure surfaces": {
			secret:     secret,
			token:      "valid",
			refreshErr: errors.New("sheet unreachable"),
			wantCode:   http.StatusInternalServerError,
			wantRuns:   1,
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			cat := &fakeCatalog{size: 7, refreshErr: tc.refreshErr}
			s := newTestServer(cat, tc.secret)

			req := httptest.NewRequest(http.MethodPost, "/admin/refresh", nil)
			switch tc.token {
			case "valid":
				req.Header.Set("Authorization", "Bearer "+signAdminToken(t, secret, "admin", time.Now().Add(time.Hour)))
			case "wrong-secret":
				req.Header.Set("Authorization", "Bearer "+signAdminToken(t, "other", "admin", time.Now().Add(time.Hour)))
			case "expired":
				req.Header.Set("Authorization", "Bearer "+signAdminToken(t, secret, "admin", time.Now().Add(-time.Hour)))
			case "wrong-subject":
				req.Header.Set("Authorization", "Bearer "+signAdminToken(t, secret, "deploy", time.Now().Add(time.Hour)))
			}

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			require.Equal(t, tc.wantCode, rec.Code)
			require.Equal(t, tc.wantRuns, cat.refreshed)

			if tc.wantCode == http.StatusOK {
				var resp map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.Equal(t, "refreshed", resp["status"])
				require.Equal(t, float64(7), resp["plants"])
			}
		})
	}
}
