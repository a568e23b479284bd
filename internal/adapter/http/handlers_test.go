package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	adapthttp "quizfest/internal/adapter/http"
	"quizfest/internal/adapter/memory"
	"quizfest/internal/app"
	"quizfest/internal/domain"
	"quizfest/internal/security/token"
	"quizfest/internal/security/totp"
)

const (
	testUser       = "admin"
	testPassword   = "correct-horse-battery"
	testSecret     = "0123456789abcdef0123456789abcdef"
	testTOTPSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
)

// ---------------------------------------------------------------------------
// Mock stores (function-fields pattern)
// ---------------------------------------------------------------------------

type mockRateLimitStore struct {
	hitFn func(ctx context.Context, key string, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error)
}

func (m *mockRateLimitStore) Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	if m.hitFn != nil {
		return m.hitFn(ctx, key, max, window, now)
	}
	return domain.RateLimitDecision{Allowed: true, Count: 1, ResetAt: now.Add(window)}, nil
}

// ---------------------------------------------------------------------------
// Test-server helper
// ---------------------------------------------------------------------------

type serverOptions struct {
	totpSecret string
	allowBulk  bool
	rateStore  domain.RateLimitStore
}

type testEnv struct {
	ts     *httptest.Server
	db     *memory.DB
	client *http.Client
}

func newTestServer(t *testing.T, opts serverOptions) *testEnv {
	t.Helper()

	db := memory.New()
	store := memory.NewStore(time.Minute)
	var rateStore domain.RateLimitStore = store
	if opts.rateStore != nil {
		rateStore = opts.rateStore
	}

	admin := domain.AdminPrincipal{Username: testUser, Password: testPassword, TOTPSecret: opts.totpSecret}
	codec, err := token.New(testSecret, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	audit := app.NewAuditor(nil)

	webDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html></html>"), 0o600); err != nil {
		t.Fatal(err)
	}

	srv := adapthttp.New(adapthttp.Services{
		Auth:          app.NewAuthService(admin, codec, store, audit, app.DefaultAuthConfig()),
		Registrations: app.NewRegistrationService(db, audit, opts.allowBulk),
		Exports:       app.NewExportService(db, admin, audit),
		Contacts:      app.NewContactService(db, audit),
		Limiter:       app.NewRateLimiter(rateStore, nil),
	}, adapthttp.Config{WebDir: webDir})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{ts: ts, db: db, client: &http.Client{Jar: jar}}
}

func (e *testEnv) do(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) doRaw(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) login(t *testing.T) map[string]any {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": testPassword})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func (e *testEnv) seed(t *testing.T, regs ...domain.Registration) {
	t.Helper()
	for i := range regs {
		if err := e.db.CreateRegistration(context.Background(), &regs[i]); err != nil {
			t.Fatal(err)
		}
	}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return m
}

func sampleRegistration(number, studentID, category string) domain.Registration {
	return domain.Registration{
		ID:                 "id-" + number,
		RegistrationNumber: number,
		NameEnglish:        "Rahim Uddin",
		NameBangla:         "রহিম উদ্দিন",
		FatherName:         "Karim Uddin",
		MotherName:         "Amena Begum",
		StudentID:          studentID,
		Class:              "7",
		Section:            "B",
		BloodGroup:         "B+",
		PhoneWhatsapp:      "01711988862",
		Email:              studentID + "@example.com",
		PresentAddress:     "House 12, Road 5, Dhanmondi, Dhaka 1205",
		PermanentAddress:   "Village Rampur, Comilla",
		ClassCategory:      category,
		CreatedAt:          time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t, serverOptions{})

	resp := env.do(t, http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
}

func TestLoginWithoutTwoFactor(t *testing.T) {
	env := newTestServer(t, serverOptions{})

	body := env.login(t)
	if body["success"] != true || body["requiresTwoFactor"] != false {
		t.Fatalf("unexpected login body %v", body)
	}

	resp := env.do(t, http.MethodGet, "/api/admin/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}
	me := decodeBody(t, resp)
	if me["authenticated"] != true || me["user"] != testUser || me["twoFactorEnabled"] != false {
		t.Errorf("unexpected me body %v", me)
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	resp := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": testPassword})

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name != adapthttp.DefaultCookieName {
			continue
		}
		found = true
		if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
			t.Errorf("unexpected cookie attributes %+v", c)
		}
	}
	if !found {
		t.Fatal("session cookie not set")
	}
}

func TestLoginWithTwoFactor(t *testing.T) {
	env := newTestServer(t, serverOptions{totpSecret: testTOTPSecret, allowBulk: true})
	env.seed(t, sampleRegistration("QF-00001", "S1", "06-08"))

	body := env.login(t)
	if body["requiresTwoFactor"] != true {
		t.Fatalf("expected requiresTwoFactor=true, got %v", body)
	}

	me := decodeBody(t, env.do(t, http.MethodGet, "/api/admin/me", nil))
	if me["authenticated"] != false || me["twoFactorVerified"] != false {
		t.Errorf("pending session must not be authenticated: %v", me)
	}

	for _, path := range []string{"/api/admin/registrations", "/api/admin/registrations/search/QF-00001"} {
		if resp := env.do(t, http.MethodGet, path, nil); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s before TOTP: expected 401, got %d", path, resp.StatusCode)
		}
	}

	resp := env.do(t, http.MethodPost, "/api/admin/2fa/verify", map[string]string{"token": "000000"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong code: expected 401, got %d", resp.StatusCode)
	}

	code, err := totp.Code(testTOTPSecret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	resp = env.do(t, http.MethodPost, "/api/admin/2fa/verify", map[string]string{"token": code})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("correct code: expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/admin/registrations/search/QF-00001", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search after TOTP: expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/admin/registrations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list after TOTP: expected 200, got %d", resp.StatusCode)
	}

	me = decodeBody(t, env.do(t, http.MethodGet, "/api/admin/me", nil))
	if me["authenticated"] != true || me["twoFactorVerified"] != true {
		t.Errorf("expected verified session, got %v", me)
	}
}

func TestTwoFactorVerifyRequiresSession(t *testing.T) {
	env := newTestServer(t, serverOptions{totpSecret: testTOTPSecret})
	resp := env.do(t, http.MethodPost, "/api/admin/2fa/verify", map[string]string{"token": "123456"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestTwoFactorSetup(t *testing.T) {
	env := newTestServer(t, serverOptions{})

	if resp := env.do(t, http.MethodPost, "/api/admin/2fa/setup", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("setup without session: expected 401, got %d", resp.StatusCode)
	}

	env.login(t)
	resp := env.do(t, http.MethodPost, "/api/admin/2fa/setup", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("setup: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["secret"] == "" || !strings.HasPrefix(body["otpauthUrl"].(string), "otpauth://") ||
		!strings.HasPrefix(body["qrCodeImage"].(string), "data:image/png;base64,") {
		t.Errorf("unexpected setup body %v", body)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestServer(t, serverOptions{})

	for i := 1; i <= 6; i++ {
		resp := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": "wrong"})
		want := http.StatusUnauthorized
		if i == 6 {
			want = http.StatusTooManyRequests
		}
		if resp.StatusCode != want {
			t.Fatalf("attempt %d: expected %d, got %d", i, want, resp.StatusCode)
		}
		if i == 6 {
			body := decodeBody(t, resp)
			if body["error"] != app.ErrRateLimited.Error() {
				t.Errorf("expected generic rate-limit message, got %v", body)
			}
			if resp.Header.Get("Retry-After") != "" {
				t.Error("rate-limit response must not reveal window timing")
			}
		}
	}

	resp := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": testPassword})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("correct password inside exhausted window: expected 429, got %d", resp.StatusCode)
	}
}

func TestRateLimitStoreFailureFailsClosed(t *testing.T) {
	env := newTestServer(t, serverOptions{rateStore: &mockRateLimitStore{
		hitFn: func(ctx context.Context, key string, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
			return domain.RateLimitDecision{}, errors.New("redis down")
		},
	}})

	resp := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": testPassword})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestMeWithoutSession(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	if resp := env.do(t, http.MethodGet, "/api/admin/me", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestForgedCookieRejected(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/admin/me", nil)
	req.AddCookie(&http.Cookie{Name: adapthttp.DefaultCookieName, Value: "eyJzaWQiOiJ4IiwidXNlciI6ImFkbWluIn0.Zm9yZ2Vk"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	env.login(t)

	// Keep a copy of the cookie to replay after logout.
	u := env.ts.URL + "/api/admin/me"
	req, _ := http.NewRequest(http.MethodGet, u, nil)
	cookies := env.client.Jar.Cookies(req.URL)
	if len(cookies) == 0 {
		t.Fatal("no session cookie in jar")
	}

	resp := env.do(t, http.MethodPost, "/api/admin/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}

	replay, _ := http.NewRequest(http.MethodGet, u, nil)
	for _, c := range cookies {
		replay.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(replay)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed cookie after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestBulkListingDisabledByDefault(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	env.login(t)

	resp := env.do(t, http.MethodGet, "/api/admin/registrations", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	env.seed(t, sampleRegistration("QF-00001", "S1", "06-08"))
	env.login(t)

	tests := []struct {
		name       string
		term       string
		wantStatus int
	}{
		{"by number", "QF-00001", http.StatusOK},
		{"by number lower case", "qf-00001", http.StatusOK},
		{"by student id", "S1", http.StatusOK},
		{"unknown", "QF-99999", http.StatusNotFound},
		{"too short", "x", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/api/admin/registrations/search/"+tc.term, nil)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			data := decodeBody(t, resp)["data"].(map[string]any)
			if data["phoneWhatsapp"] != "017*****862" || data["email"] != "S1***@example.com" {
				t.Errorf("expected masked contact fields, got %v", data)
			}
			if data["presentAddress"] != "House 12, Road 5, Dh..." {
				t.Errorf("expected truncated address, got %v", data["presentAddress"])
			}
			if data["nameEnglish"] != "Rahim Uddin" {
				t.Errorf("expected unmasked name, got %v", data["nameEnglish"])
			}
		})
	}
}

func TestExport(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	env.seed(t,
		sampleRegistration("QF-00001", "S1", "06-08"),
		sampleRegistration("QF-00002", "S2", "09-10"),
		sampleRegistration("QF-00003", "S3", "11-12"),
	)
	env.login(t)

	resp := env.do(t, http.MethodPost, "/api/admin/export/csv", map[string]string{"password": "wrong", "category": "all"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "invalid password" {
		t.Errorf("expected invalid password message, got %v", body)
	}

	resp = env.do(t, http.MethodPost, "/api/admin/export/csv", map[string]string{"password": testPassword, "category": "09-12"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	meta := body["meta"].(map[string]any)
	if meta["count"] != float64(2) || meta["category"] != "09-12" {
		t.Errorf("unexpected meta %v", meta)
	}
	data := body["data"].([]any)
	if first := data[0].(map[string]any); first["phoneWhatsapp"] != "01711988862" {
		t.Errorf("export must carry full records, got %v", first["phoneWhatsapp"])
	}
}

func TestExportCSVFormat(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	env.seed(t, sampleRegistration("QF-00001", "S1", "06-08"))
	env.login(t)

	resp := env.do(t, http.MethodPost, "/api/admin/export/csv?format=csv", map[string]string{"password": testPassword, "category": "06-08"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "quiz-fest-class-06-08-registrations-") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if rows[1][1] != "QF-00001" || rows[1][14] != "06-08" {
		t.Errorf("unexpected row %v", rows[1])
	}
}

func TestExportRateLimit(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	env.login(t)

	for i := 1; i <= 4; i++ {
		resp := env.do(t, http.MethodPost, "/api/admin/export/csv", map[string]string{"password": testPassword, "category": "all"})
		want := http.StatusOK
		if i == 4 {
			want = http.StatusTooManyRequests
		}
		if resp.StatusCode != want {
			t.Fatalf("export %d: expected %d, got %d", i, want, resp.StatusCode)
		}
	}
}

func TestPublicRegistration(t *testing.T) {
	env := newTestServer(t, serverOptions{})

	payload := map[string]string{
		"nameEnglish":      "Rahim Uddin",
		"nameBangla":       "রহিম উদ্দিন",
		"fatherName":       "Karim Uddin",
		"motherName":       "Amena Begum",
		"studentId":        "CAP-1",
		"class":            "7",
		"section":          "B",
		"bloodGroup":       "B+",
		"phoneWhatsapp":    "01711988862",
		"email":            "rahim@example.com",
		"presentAddress":   "Dhaka",
		"permanentAddress": "Comilla",
		"classCategory":    "06-08",
	}

	resp := env.do(t, http.MethodPost, "/api/registrations", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	data := decodeBody(t, resp)["data"].(map[string]any)
	if !strings.HasPrefix(data["registrationNumber"].(string), "QF-") {
		t.Errorf("unexpected registration number %v", data["registrationNumber"])
	}

	resp = env.do(t, http.MethodPost, "/api/registrations", payload)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.StatusCode)
	}

	payload["studentId"] = "CAP-2"
	payload["email"] = ""
	payload["bloodGroup"] = "Z"
	resp = env.do(t, http.MethodPost, "/api/registrations", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid: expected 400, got %d", resp.StatusCode)
	}
	details := decodeBody(t, resp)["details"].(map[string]any)
	if _, ok := details["bloodGroup"]; !ok {
		t.Errorf("expected bloodGroup detail, got %v", details)
	}

	resp = env.do(t, http.MethodPost, "/api/registrations", payload)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("4th registration in a minute: expected 429, got %d", resp.StatusCode)
	}

	stats := decodeBody(t, env.do(t, http.MethodGet, "/api/registration-stats", nil))
	if stats["total"] != float64(1) {
		t.Errorf("expected total 1, got %v", stats["total"])
	}
}

func TestContactEndpoints(t *testing.T) {
	env := newTestServer(t, serverOptions{})

	resp := env.do(t, http.MethodPost, "/api/contact", map[string]string{
		"name": "Visitor", "email": "v@example.com", "subject": "Venue", "message": "Where?",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", resp.StatusCode)
	}

	if resp := env.do(t, http.MethodGet, "/api/admin/contact", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("list without session: expected 401, got %d", resp.StatusCode)
	}

	env.login(t)
	resp = env.do(t, http.MethodGet, "/api/admin/contact", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	if data := decodeBody(t, resp)["data"].([]any); len(data) != 1 {
		t.Errorf("expected 1 submission, got %d", len(data))
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	resp := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": testPassword, "role": "root"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	details, _ := decodeBody(t, resp)["details"].(map[string]any)
	if _, ok := details["role"]; !ok {
		t.Errorf("expected details for role, got %v", details)
	}
}

func TestLoginValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"empty object", `{}`, []string{"username", "password"}},
		{"empty strings", `{"username":"","password":""}`, []string{"username", "password"}},
		{"missing password", `{"username":"admin"}`, []string{"password"}},
		{"wrong type", `{"username":1,"password":"x"}`, []string{"username"}},
		{"malformed", `{"username":`, []string{"body"}},
		{"no body", ``, []string{"body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(t, serverOptions{})
			resp := env.doRaw(t, http.MethodPost, "/api/admin/login", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			body := decodeBody(t, resp)
			if body["error"] != "validation failed" {
				t.Errorf("unexpected error %v", body["error"])
			}
			details, _ := body["details"].(map[string]any)
			for _, f := range tt.fields {
				if _, ok := details[f]; !ok {
					t.Errorf("expected details for %q, got %v", f, details)
				}
			}
		})
	}
}

func TestLoginWrongPasswordStillUnauthorized(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	resp := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": testUser, "password": "nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if _, ok := decodeBody(t, resp)["details"]; ok {
		t.Error("credential failures must not carry details")
	}
}

func TestTwoFactorVerifyValidation(t *testing.T) {
	env := newTestServer(t, serverOptions{totpSecret: testTOTPSecret})
	env.login(t)

	for _, tok := range []string{"abc", "12345", "1234567"} {
		resp := env.do(t, http.MethodPost, "/api/admin/2fa/verify", map[string]string{"token": tok})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("token %q: expected 400, got %d", tok, resp.StatusCode)
		}
		details, _ := decodeBody(t, resp)["details"].(map[string]any)
		if _, ok := details["token"]; !ok {
			t.Errorf("token %q: expected details for token, got %v", tok, details)
		}
	}
}

func TestSPAFallback(t *testing.T) {
	env := newTestServer(t, serverOptions{})
	resp := env.do(t, http.MethodGet, "/admin/dashboard", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Errorf("expected no-store, got %q", resp.Header.Get("Cache-Control"))
	}
}
