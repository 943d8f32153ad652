package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshopportal/internal/dto"
	"workshopportal/internal/repo"
	"workshopportal/internal/report"
	"workshopportal/internal/service"
)

const (
	adminPassword = "open-sesame"
	sessionSecret = "0123456789abcdef0123456789abcdef"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type sentMail struct {
	name, email, workshop string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, name, email, workshop string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{name, email, workshop})
	return f.err
}

func (f *fakeNotifier) calls() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

type envelope struct {
	Status string          `json:"status"`
	Error  *dto.Error      `json:"error"`
	Data   json.RawMessage `json:"data"`
}

type portal struct {
	t         *testing.T
	srv       *httptest.Server
	client    *http.Client
	repo      repo.Repository
	notifier  *fakeNotifier
	exportDir string
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	dir := t.TempDir()

	db, err := repo.OpenSQLite(filepath.Join(dir, "data", "workshop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	r, err := repo.NewRepository(db, &log)
	require.NoError(t, err)
	require.NoError(t, r.Initialize())

	notifier := &fakeNotifier{}
	exportDir := filepath.Join(dir, "exports")
	svc := service.NewService(r, &log, notifier, service.Options{
		AdminPassword: adminPassword,
		ExportDir:     exportDir,
	})

	srv := httptest.NewServer(NewRouters(&Routers{
		Service:       svc,
		SessionSecret: []byte(sessionSecret),
	}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &portal{
		t:         t,
		srv:       srv,
		client:    &http.Client{Jar: jar},
		repo:      r,
		notifier:  notifier,
		exportDir: exportDir,
	}
}

func (p *portal) do(method, path string, body any) *http.Response {
	p.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(p.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, p.srv.URL+path, rdr)
	require.NoError(p.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	p.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (p *portal) decode(resp *http.Response) envelope {
	p.t.Helper()
	var env envelope
	require.NoError(p.t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func (p *portal) login() {
	p.t.Helper()
	resp := p.do(http.MethodPost, "/v1/admin/login", dto.LoginRequest{Password: adminPassword})
	require.Equal(p.t, http.StatusOK, resp.StatusCode)
}

func (p *portal) register(req dto.CreateRegistrationRequest) *http.Response {
	p.t.Helper()
	return p.do(http.MethodPost, "/v1/registrations", req)
}

func (p *portal) rowsFor(email string) int {
	p.t.Helper()
	regs, err := p.repo.ListAll(context.Background())
	require.NoError(p.t, err)
	n := 0
	for _, r := range regs {
		if r.Email == email {
			n++
		}
	}
	return n
}

func validRequest(name, email, workshop string) dto.CreateRegistrationRequest {
	return dto.CreateRegistrationRequest{
		Name:        name,
		Email:       email,
		Phone:       "0241234567",
		Institution: "University of Ghana",
		Course:      "Computer Engineering",
		Workshop:    workshop,
	}
}

func TestRegister_PythonBasicsThenDuplicate(t *testing.T) {
	p := newPortal(t)

	resp := p.register(validRequest("Alice", "alice@example.com", "Python Basics"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env := p.decode(resp)
	require.Equal(t, "ok", env.Status)
	require.Nil(t, env.Error)

	var created dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Positive(t, created.ID)
	assert.Equal(t, "Alice - Python Basics", created.QRPayload)
	assert.NotEmpty(t, created.Notice)

	png, err := base64.StdEncoding.DecodeString(created.QRCode)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, pngMagic))

	require.Equal(t, 1, p.rowsFor("alice@example.com"))
	require.Equal(t, []sentMail{{"Alice", "alice@example.com", "Python Basics"}}, p.notifier.calls())

	resp = p.register(validRequest("Alice Again", "alice@example.com", "Data Science"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env = p.decode(resp)
	require.Equal(t, "error", env.Status)
	require.Equal(t, dto.EmailAlreadyRegistered, env.Error.Code)

	require.Equal(t, 1, p.rowsFor("alice@example.com"))
	require.Len(t, p.notifier.calls(), 1)
}

func TestRegister_MissingFieldIsRejectedBeforeStore(t *testing.T) {
	p := newPortal(t)

	req := validRequest("Alice", "alice@example.com", "Python Basics")
	req.Institution = "   "
	resp := p.register(req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, dto.FieldIncorrect, p.decode(resp).Error.Code)

	req = validRequest("Bob", "bob@example.com", "")
	resp = p.register(req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Zero(t, p.rowsFor("alice@example.com"))
	require.Zero(t, p.rowsFor("bob@example.com"))
	require.Empty(t, p.notifier.calls())
}

func TestRegister_UnknownWorkshop(t *testing.T) {
	p := newPortal(t)

	resp := p.register(validRequest("Alice", "alice@example.com", "Underwater Basket Weaving"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, p.rowsFor("alice@example.com"))
}

func TestRegister_MailFailureDoesNotAffectOutcome(t *testing.T) {
	p := newPortal(t)
	p.notifier.err = errors.New("relay refused connection")

	resp := p.register(validRequest("Alice", "alice@example.com", "Data Science"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(p.decode(resp).Data, &created))
	assert.Empty(t, created.Notice)
	assert.NotEmpty(t, created.QRCode)
	require.Equal(t, 1, p.rowsFor("alice@example.com"))
}

func TestRegister_FormEncodedAndBlankReferrer(t *testing.T) {
	p := newPortal(t)

	form := url.Values{
		"name":        {"Kofi"},
		"email":       {"kofi@example.com"},
		"phone":       {"0209999999"},
		"institution": {"KNUST"},
		"course":      {"Statistics"},
		"workshop":    {"Data Analysis"},
		"referrer":    {"   "},
	}
	resp, err := p.client.PostForm(p.srv.URL+"/v1/registrations", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	regs, err := p.repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Nil(t, regs[0].Referrer)
}

func TestWorkshops(t *testing.T) {
	p := newPortal(t)

	resp := p.do(http.MethodGet, "/v1/workshops", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var names []string
	require.NoError(t, json.Unmarshal(p.decode(resp).Data, &names))
	require.Contains(t, names, "Python Basics")
	require.Contains(t, names, "Django for backend")
}

func TestQRCodeEndpoint(t *testing.T) {
	p := newPortal(t)

	resp := p.do(http.MethodGet, "/v1/qr", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = p.do(http.MethodGet, "/v1/qr?text="+strings.Repeat("x", 3000), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, dto.FieldIncorrect, p.decode(resp).Error.Code)

	resp = p.do(http.MethodGet, "/v1/qr?text="+url.QueryEscape("Alice - AI"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, pngMagic))
}

func TestAdmin_Gate(t *testing.T) {
	p := newPortal(t)

	adminRoutes := []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/admin/registrations"},
		{http.MethodDelete, "/v1/admin/registrations/1"},
		{http.MethodGet, "/v1/admin/summary"},
		{http.MethodGet, "/v1/admin/chart.png"},
		{http.MethodGet, "/v1/admin/export.csv"},
		{http.MethodPost, "/v1/admin/export"},
	}
	for _, rt := range adminRoutes {
		resp := p.do(rt.method, rt.path, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", rt.method, rt.path)
	}

	resp := p.do(http.MethodPost, "/v1/admin/login", dto.LoginRequest{Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, dto.AccessDenied, p.decode(resp).Error.Code)

	resp = p.do(http.MethodGet, "/v1/admin/registrations", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	p.login()
	resp = p.do(http.MethodGet, "/v1/admin/registrations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = p.do(http.MethodGet, "/v1/admin/session", nil)
	require.JSONEq(t, `{"admin":true}`, string(p.decode(resp).Data))

	resp = p.do(http.MethodPost, "/v1/admin/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = p.do(http.MethodGet, "/v1/admin/registrations", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_ListAndDelete(t *testing.T) {
	p := newPortal(t)

	require.Equal(t, http.StatusCreated, p.register(validRequest("Alice", "alice@example.com", "Python Basics")).StatusCode)
	ref := validRequest("Bob", "bob@example.com", "Web Development")
	ref.Referrer = "AMA"
	require.Equal(t, http.StatusCreated, p.register(ref).StatusCode)

	p.login()

	resp := p.do(http.MethodGet, "/v1/admin/registrations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []dto.AdminRegistration
	require.NoError(t, json.Unmarshal(p.decode(resp).Data, &list))
	require.Len(t, list, 2)
	require.Equal(t, "Alice", list[0].Name)
	require.Nil(t, list[0].Referrer)
	require.NotNil(t, list[1].Referrer)
	require.Equal(t, "AMA", *list[1].Referrer)
	require.True(t, strings.HasSuffix(list[0].Label, " - Alice"))

	path := "/v1/admin/registrations/" + strconv.FormatInt(list[0].ID, 10)
	require.Equal(t, http.StatusOK, p.do(http.MethodDelete, path, nil).StatusCode)
	require.Equal(t, http.StatusOK, p.do(http.MethodDelete, path, nil).StatusCode)
	require.Equal(t, http.StatusOK, p.do(http.MethodDelete, "/v1/admin/registrations/424242", nil).StatusCode)
	require.Equal(t, http.StatusBadRequest, p.do(http.MethodDelete, "/v1/admin/registrations/abc", nil).StatusCode)

	require.Zero(t, p.rowsFor("alice@example.com"))
	require.Equal(t, 1, p.rowsFor("bob@example.com"))
}

func TestAdmin_SummaryAndChart(t *testing.T) {
	p := newPortal(t)
	p.login()

	resp := p.do(http.MethodGet, "/v1/admin/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary dto.SummaryResponse
	require.NoError(t, json.Unmarshal(p.decode(resp).Data, &summary))
	require.True(t, summary.NoData)
	require.Empty(t, summary.Workshops)

	resp = p.do(http.MethodGet, "/v1/admin/chart.png", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, dto.NoData, p.decode(resp).Error.Code)

	p.register(validRequest("A", "a@example.com", "Data Science"))
	p.register(validRequest("B", "b@example.com", "Data Science"))
	p.register(validRequest("C", "c@example.com", "Python Basics"))

	resp = p.do(http.MethodGet, "/v1/admin/summary", nil)
	require.NoError(t, json.Unmarshal(p.decode(resp).Data, &summary))
	require.False(t, summary.NoData)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, map[string]int{"Data Science": 2, "Python Basics": 1}, summary.Workshops)

	resp = p.do(http.MethodGet, "/v1/admin/chart.png", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Content-Disposition"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, pngMagic))

	resp = p.do(http.MethodGet, "/v1/admin/chart.png?download=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), report.ChartFileName)
}

func TestAdmin_ExportCSV(t *testing.T) {
	p := newPortal(t)
	p.login()

	resp := p.do(http.MethodGet, "/v1/admin/export.csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "Name,Email,Phone,Institution,Course,Workshop,Referrer", strings.TrimSpace(string(body)))

	req := validRequest("Smith, Jane", "jane@example.com", "Machine Learning")
	req.Referrer = "Prof. Mensah"
	p.register(req)

	resp = p.do(http.MethodGet, "/v1/admin/export.csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), report.CSVFileName)

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []string{
		"Smith, Jane", "jane@example.com", "0241234567", "University of Ghana",
		"Computer Engineering", "Machine Learning", "Prof. Mensah",
	}, records[1])
}

func TestAdmin_ExportToDisk(t *testing.T) {
	p := newPortal(t)
	p.register(validRequest("Alice", "alice@example.com", "Python Basics"))
	p.login()

	resp := p.do(http.MethodPost, "/v1/admin/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dto.ExportResponse
	require.NoError(t, json.Unmarshal(p.decode(resp).Data, &out))
	require.Equal(t, 1, out.Rows)
	require.Equal(t, filepath.Join(p.exportDir, report.CSVFileName), out.Path)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Contains(t, string(data), "alice@example.com")
}
