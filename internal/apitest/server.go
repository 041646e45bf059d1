// Package apitest provides an in-memory hot-deal API for tests.
//
// The server mirrors the backend's routes, status codes and {"detail": ...} error bodies closely
// enough to exercise login, refresh, keyword and admin flows end to end:
//
//	srv := apitest.New(t)
//	srv.AddUser(apitest.User{Email: "a@example.com", Password: "pw", Active: true})
//	client := newClient(srv.BaseURL())
package apitest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RefreshCookie is the name of the cookie carrying the refresh token.
const RefreshCookie = "refresh_token"

// AdminLevel is the auth level the admin routes require.
const AdminLevel = 9

var signingKey = []byte("apitest-signing-key")

// User describes an account seeded into the server.
type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	Nickname  string
	AuthLevel int
	Active    bool
	CreatedAt time.Time
	LastLogin *time.Time
}

// WorkerLog is a crawler run record returned by /admin/logs.
type WorkerLog struct {
	ID         int     `json:"id"`
	RunAt      string  `json:"run_at"`
	Status     string  `json:"status"`
	ItemsFound int     `json:"items_found"`
	Message    *string `json:"message"`
	Details    *string `json:"details"`
}

type keyword struct {
	ID    int       `json:"id"`
	Title string    `json:"title"`
	WDate string    `json:"wdate"`
	owner uuid.UUID
}

type contextKey struct{}

// Server is the fake API. All exported methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[uuid.UUID]*User
	keywords    []keyword
	nextKeyword int
	logs        []WorkerLog
	access      map[string]uuid.UUID
	refresh     map[string]uuid.UUID

	refreshCalls int
	searches     int
	requests     []string
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		users:       make(map[uuid.UUID]*User),
		access:      make(map[string]uuid.UUID),
		refresh:     make(map[string]uuid.UUID),
		nextKeyword: 1,
	}
	s.Server = httptest.NewServer(s.routes(slog.New(slog.DiscardHandler)))
	t.Cleanup(s.Close)
	return s
}

// BaseURL returns the API base address, including the /api prefix.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) routes(logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery, Logging(logger), s.record)

	r.Route("/api", func(r chi.Router) {
		r.Route("/user/v1", func(r chi.Router) {
			r.Post("/", s.signup)
			r.Post("/login", s.login)
			r.Post("/token/refresh", s.refreshToken)
			r.With(s.authenticated).Post("/logout", s.logout)
			r.With(s.authenticated).Get("/me", s.me)
		})

		r.Route("/hotdeal/v1", func(r chi.Router) {
			r.Use(s.authenticated)
			r.Get("/keywords", s.listKeywords)
			r.Post("/keywords", s.createKeyword)
			r.Delete("/keywords/{id}", s.deleteKeyword)
			r.Get("/sites", s.listSites)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authenticated, s.adminOnly)
			r.Get("/users", s.listUsers)
			r.Get("/users/{id}", s.getUser)
			r.Patch("/users/{id}/approve", s.setActive(true))
			r.Patch("/users/{id}/unapprove", s.setActive(false))
			r.Get("/keywords", s.listAllKeywords)
			r.Delete("/keywords/{id}", s.deleteAnyKeyword)
			r.Get("/logs", s.listLogs)
			r.Post("/hotdeals/trigger-search", s.triggerSearch)
		})
	})

	return r
}

// AddUser seeds an account and returns its id.
func (s *Server) AddUser(u User) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Nickname == "" {
		u.Nickname = strings.Split(u.Email, "@")[0]
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = &u
	return u.ID
}

// AddKeyword registers a keyword owned by the given user and returns its id.
func (s *Server) AddKeyword(owner uuid.UUID, title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addKeywordLocked(owner, title).ID
}

// AddWorkerLog appends a crawler run record.
func (s *Server) AddWorkerLog(status string, itemsFound int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := WorkerLog{
		ID:         len(s.logs) + 1,
		RunAt:      time.Now().Format("2006-01-02T15:04:05.000000"),
		Status:     status,
		ItemsFound: itemsFound,
	}
	if message != "" {
		log.Message = &message
	}
	s.logs = append(s.logs, log)
}

// ExpireAccessTokens invalidates every issued access token, as if they all ran out.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
}

// RevokeRefreshTokens invalidates every refresh cookie, forcing the next refresh to fail.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refresh)
}

// RefreshCalls returns how many refresh attempts reached the server.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// SearchesTriggered returns how many manual crawler runs were requested.
func (s *Server) SearchesTriggered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

// Requests returns "METHOD /path" for every request received, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Active reports whether the user is approved.
func (s *Server) Active(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return ok && u.Active
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// authenticated resolves the bearer token to a user or answers 401.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		s.mu.Lock()
		id, ok := s.access[token]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Access token expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		u := s.users[currentUser(r)]
		s.mu.Unlock()
		if u == nil || u.AuthLevel < AdminLevel {
			writeDetail(w, http.StatusForbidden, "Not enough permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(contextKey{}).(uuid.UUID)
	return id
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByEmailLocked(body.Email) != nil {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	u := &User{
		ID:        uuid.New(),
		Email:     body.Email,
		Password:  body.Password,
		Nickname:  body.Nickname,
		AuthLevel: 1,
		CreatedAt: time.Now(),
	}
	s.users[u.ID] = u
	writeJSON(w, http.StatusCreated, userJSON(u))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.findByEmailLocked(body.Email)
	switch {
	case u == nil:
		writeDetail(w, http.StatusUnauthorized, "User not found")
		return
	case u.Password != body.Password:
		writeDetail(w, http.StatusUnauthorized, "Invalid password")
		return
	case !u.Active:
		writeDetail(w, http.StatusUnauthorized, "User account is not active")
		return
	}

	now := time.Now()
	u.LastLogin = &now
	refresh := uuid.NewString()
	s.refresh[refresh] = u.ID
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    refresh,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	})
	s.writeTokenLocked(w, u)
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++

	cookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	id, ok := s.refresh[cookie.Value]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Refresh token expired")
		return
	}
	u := s.users[id]
	if u == nil || !u.Active {
		writeDetail(w, http.StatusUnauthorized, "User account is not active")
		return
	}
	s.writeTokenLocked(w, u)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		delete(s.refresh, cookie.Value)
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	delete(s.access, token)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[currentUser(r)]
	if u == nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, userJSON(u))
}

func (s *Server) listKeywords(w http.ResponseWriter, r *http.Request) {
	owner := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	items := []keyword{}
	for _, kw := range s.keywords {
		if kw.owner == owner {
			items = append(items, kw)
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createKeyword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		writeDetail(w, http.StatusBadRequest, "Keyword title must not be empty")
		return
	}

	owner := currentUser(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kw := range s.keywords {
		if kw.owner == owner && kw.Title == title {
			writeDetail(w, http.StatusBadRequest, "Keyword already exists")
			return
		}
	}
	writeJSON(w, http.StatusCreated, s.addKeywordLocked(owner, title))
}

func (s *Server) deleteKeyword(w http.ResponseWriter, r *http.Request) {
	s.removeKeyword(w, r, currentUser(r))
}

func (s *Server) deleteAnyKeyword(w http.ResponseWriter, r *http.Request) {
	s.removeKeyword(w, r, uuid.Nil)
}

// removeKeyword deletes the keyword named in the path. A nil owner matches any keyword.
func (s *Server) removeKeyword(w http.ResponseWriter, r *http.Request, owner uuid.UUID) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid keyword id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.keywords, func(kw keyword) bool {
		return kw.ID == id && (owner == uuid.Nil || kw.owner == owner)
	})
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Keyword not found")
		return
	}
	s.keywords = slices.Delete(s.keywords, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]string{
		{"name": "algumon", "display_name": "알구몬", "search_url_template": "https://www.algumon.com/search/{keyword}"},
		{"name": "fmkorea", "display_name": "FM코리아", "search_url_template": "https://www.fmkorea.com/search.php?keyword={keyword}"},
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]map[string]any, 0, len(s.users))
	for _, u := range s.sortedUsersLocked() {
		items = append(items, userJSON(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.pathUser(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	detail := userJSON(u)
	kws := []keyword{}
	for _, kw := range s.keywords {
		if kw.owner == u.ID {
			kws = append(kws, kw)
		}
	}
	detail["keywords"] = kws
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.pathUser(w, r)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		u.Active = active
		writeJSON(w, http.StatusOK, userJSON(u))
	}
}

func (s *Server) listAllKeywords(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": append([]keyword{}, s.keywords...)})
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Newest first
	items := slices.Clone(s.logs)
	slices.Reverse(items)
	if items == nil {
		items = []WorkerLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) triggerSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Hot deal search started in the background."})
}

func (s *Server) pathUser(w http.ResponseWriter, r *http.Request) (*User, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid user id")
		return nil, false
	}

	s.mu.Lock()
	u := s.users[id]
	s.mu.Unlock()
	if u == nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	return u, true
}

func (s *Server) findByEmailLocked(email string) *User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (s *Server) sortedUsersLocked() []*User {
	users := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b *User) int { return strings.Compare(a.Email, b.Email) })
	return users
}

func (s *Server) addKeywordLocked(owner uuid.UUID, title string) keyword {
	kw := keyword{
		ID:    s.nextKeyword,
		Title: title,
		WDate: time.Now().Format("2006-01-02T15:04:05.000000"),
		owner: owner,
	}
	s.nextKeyword++
	s.keywords = append(s.keywords, kw)
	return kw
}

// writeTokenLocked issues a fresh access token for u and writes the login response.
func (s *Server) writeTokenLocked(w http.ResponseWriter, u *User) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    u.ID.String(),
		"email":      u.Email,
		"nickname":   u.Nickname,
		"auth_level": u.AuthLevel,
		"exp":        time.Now().Add(30 * time.Minute).Unix(),
		"jti":        uuid.NewString(),
	}).SignedString(signingKey)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.access[token] = u.ID
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "user_id": u.ID.String()})
}

func userJSON(u *User) map[string]any {
	m := map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"nickname":   u.Nickname,
		"is_active":  u.Active,
		"auth_level": u.AuthLevel,
		"last_login": nil,
		"created_at": u.CreatedAt.Format("2006-01-02T15:04:05.000000"),
	}
	if u.LastLogin != nil {
		m["last_login"] = u.LastLogin.Format("2006-01-02T15:04:05.000000")
	}
	return m
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
