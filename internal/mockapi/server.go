package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/five82/licdesk/internal/licensing"
)

// Default credentials accepted by POST /login.
const (
	DefaultUsername = "admin"
	DefaultPassword = "admin"
	DefaultAdminID  = "1"
)

const (
	defaultTokenTTL = 8 * time.Hour
	timestampLayout = "2006-01-02 15:04:05"
)

// Options configures a mock backend.
type Options struct {
	Username   string
	Password   string
	AdminID    string
	SigningKey []byte
	TokenTTL   time.Duration
	// RequireAuth rejects license and module requests without a valid bearer
	// token issued by this server.
	RequireAuth bool
	Logger      zerolog.Logger
	Now         func() time.Time
}

type record struct {
	detail   licensing.LicenseDetail
	snapshot string
}

type auditEntry struct {
	domain string
	record licensing.AuditRecord
}

// Server is an in-memory license backend.
type Server struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	licenses   map[int64]*record
	nextID     int64
	nextSerial int64
	audits     []auditEntry
	nextAudit  int64
	catalog    []licensing.ModuleCatalogEntry
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// New returns a server seeded with the sample licenses and module catalog.
func New(opts Options) *Server {
	if opts.Username == "" {
		opts.Username = DefaultUsername
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.AdminID == "" {
		opts.AdminID = DefaultAdminID
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte("licdesk-mock-signing-key")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "mockapi").Logger(),
		now:      now,
		licenses: make(map[int64]*record),
	}
	s.seed()
	return s
}

func (s *Server) seed() {
	for i, entry := range seedLicenses {
		id := int64(i + 1)
		serial := seedSerialBase + id
		detail := licensing.LicenseDetail{
			Header: licensing.LicenseHeader{
				ID:           &id,
				SerialNumber: &serial,
				Domain:       entry.domain,
				CustomerName: entry.customer,
				Active:       entry.active,
			},
			Modules: append([]licensing.ModuleGrant(nil), seedModules[id]...),
		}
		s.licenses[id] = &record{detail: detail, snapshot: snapshotOf(detail)}
	}
	s.nextID = int64(len(seedLicenses)) + 1
	s.nextSerial = seedSerialBase + s.nextID
	for i, name := range seedCatalog {
		s.catalog = append(s.catalog, licensing.ModuleCatalogEntry{ID: int64(i + 1), Name: name})
	}
}

// Handler returns the HTTP routes of the backend.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/modules", s.handleModules)
		r.Get("/licenses", s.handleList)
		r.Post("/licenses", s.handleCreate)
		r.Get("/licenses/audit", s.handleAudit)
		r.Get("/licenses/{id}", s.handleDetail)
		r.Put("/licenses/{id}", s.handleUpdate)
		r.Delete("/licenses/{id}", s.handleDelete)
	})
	return r
}

// IssueToken signs an HS256 token for username.
func (s *Server) IssueToken(username string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.opts.AdminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
		},
	})
	signed, err := token.SignedString(s.opts.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", r.Header.Get(middleware.RequestIDHeader)).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.RequireAuth {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		if err := s.verifyToken(raw); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) verifyToken(raw string) error {
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.opts.SigningKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}
	if creds.Username != s.opts.Username || creds.Password != s.opts.Password {
		writeJSON(w, http.StatusOK, licensing.LoginResponse{Success: false, Message: "Invalid credentials"})
		return
	}
	token, err := s.IssueToken(creds.Username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, licensing.LoginResponse{
		Success:  true,
		Message:  "Login successful",
		AdminID:  s.opts.AdminID,
		Username: creds.Username,
		Token:    token,
	})
}

func (s *Server) handleModules(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]licensing.ModuleCatalogEntry(nil), s.catalog...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]licensing.LicenseSummary, 0, len(s.licenses))
	for _, rec := range s.licenses {
		out = append(out, rec.detail.Header.Summary())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := licenseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	rec, found := s.licenses[id]
	var detail licensing.LicenseDetail
	if found {
		detail = rec.detail.Clone()
	}
	s.mu.Unlock()
	if !found {
		writeNotFound(w, id)
		return
	}
	if detail.Modules == nil {
		detail.Modules = []licensing.ModuleGrant{}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.domainTakenLocked(payload.Header.Domain, 0) {
		writeJSON(w, http.StatusConflict, map[string]string{"domain": "Domain already exists"})
		return
	}
	id := s.nextID
	s.nextID++
	detail := s.detailFromPayload(id, payload)
	if detail.Header.SerialNumber == nil {
		serial := s.nextSerial
		detail.Header.SerialNumber = &serial
	}
	s.nextSerial++
	rec := &record{detail: detail, snapshot: snapshotFor(payload, detail)}
	s.licenses[id] = rec
	s.recordAuditLocked(detail.Header.Domain, licensing.ActionCreate, nil, &rec.snapshot)

	writeJSON(w, http.StatusCreated, licensing.SaveResponse{Success: true, ID: id, Message: "License created successfully"})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := licenseID(w, r)
	if !ok {
		return
	}
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.licenses[id]
	if !found {
		writeNotFound(w, id)
		return
	}
	if s.domainTakenLocked(payload.Header.Domain, id) {
		writeJSON(w, http.StatusConflict, map[string]string{"domain": "Domain already exists"})
		return
	}
	detail := s.detailFromPayload(id, payload)
	if detail.Header.SerialNumber == nil {
		detail.Header.SerialNumber = rec.detail.Header.SerialNumber
	}
	old := rec.snapshot
	rec.detail = detail
	rec.snapshot = snapshotFor(payload, detail)
	s.recordAuditLocked(detail.Header.Domain, licensing.ActionUpdate, &old, &rec.snapshot)

	writeJSON(w, http.StatusOK, licensing.SaveResponse{Success: true, ID: id, Message: "License updated successfully"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := licenseID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.licenses[id]
	if !found {
		writeNotFound(w, id)
		return
	}
	delete(s.licenses, id)
	old := rec.snapshot
	s.recordAuditLocked(rec.detail.Header.Domain, licensing.ActionDelete, &old, nil)

	writeJSON(w, http.StatusOK, licensing.SaveResponse{Success: true, ID: id, Message: "License deleted successfully"})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSpace(r.URL.Query().Get("domain"))
	if domain == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "domain query parameter is required"})
		return
	}
	s.mu.Lock()
	out := []licensing.AuditRecord{}
	for _, entry := range s.audits {
		if strings.EqualFold(entry.domain, domain) {
			out = append(out, entry.record)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) domainTakenLocked(domain string, except int64) bool {
	domain = strings.TrimSpace(domain)
	for id, rec := range s.licenses {
		if id != except && strings.EqualFold(rec.detail.Header.Domain, domain) {
			return true
		}
	}
	return false
}

func (s *Server) detailFromPayload(id int64, payload licensing.SavePayload) licensing.LicenseDetail {
	header := payload.Header
	header.ID = &id
	header.Domain = strings.TrimSpace(header.Domain)
	header.CustomerName = strings.TrimSpace(header.CustomerName)
	if header.SerialNumber != nil {
		serial := *header.SerialNumber
		header.SerialNumber = &serial
	}
	modules := make([]licensing.ModuleGrant, 0, len(payload.Modules))
	for i, m := range payload.Modules {
		lineID := m.ID
		if lineID <= 0 {
			lineID = i + 1
		}
		name := strings.TrimSpace(m.Module)
		if m.ModuleID > 0 {
			for _, entry := range s.catalog {
				if entry.ID == m.ModuleID {
					name = entry.Name
					break
				}
			}
		}
		modules = append(modules, licensing.ModuleGrant{
			ID:            lineID,
			ModuleID:      m.ModuleID,
			Module:        name,
			NumberOfUsers: m.NumberOfUsers,
			StartDate:     m.StartDate,
			EndDate:       m.EndDate,
		})
	}
	return licensing.LicenseDetail{Header: header, Modules: modules}
}

func (s *Server) recordAuditLocked(domain, action string, oldData, newData *string) {
	s.nextAudit++
	s.audits = append(s.audits, auditEntry{
		domain: domain,
		record: licensing.AuditRecord{
			ID:        s.nextAudit,
			Action:    action,
			OldData:   oldData,
			NewData:   newData,
			Timestamp: s.now().Format(timestampLayout),
		},
	})
}

func decodePayload(w http.ResponseWriter, r *http.Request) (licensing.SavePayload, bool) {
	var payload licensing.SavePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return licensing.SavePayload{}, false
	}
	if strings.TrimSpace(payload.Header.Domain) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Domain is required"})
		return licensing.SavePayload{}, false
	}
	if strings.TrimSpace(payload.Header.CustomerName) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Customer name is required"})
		return licensing.SavePayload{}, false
	}
	return payload, true
}

func licenseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid license id"})
		return 0, false
	}
	return id, true
}

func writeNotFound(w http.ResponseWriter, id int64) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("License %d not found", id)})
}

// snapshotFor prefers the snapshot the client computed and falls back to the
// stored detail when it is missing or not JSON.
func snapshotFor(payload licensing.SavePayload, detail licensing.LicenseDetail) string {
	if snap := strings.TrimSpace(payload.Snapshot); snap != "" && json.Valid([]byte(snap)) {
		return snap
	}
	return snapshotOf(detail)
}

func snapshotOf(detail licensing.LicenseDetail) string {
	data, err := json.Marshal(detail)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func writeJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
