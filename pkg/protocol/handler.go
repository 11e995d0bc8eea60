// Package protocol serves the Trino/Presto client protocol: statements are
// submitted with POST /v1/statement and followed through nextUri until it
// is absent.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yosida95/uritemplate/v3"

	"github.com/txn2/sqlgate/pkg/history"
	"github.com/txn2/sqlgate/pkg/statement"
)

// Request headers. Both the Trino and the legacy Presto spelling are read.
const (
	HeaderTrinoUser    = "X-Trino-User"
	HeaderPrestoUser   = "X-Presto-User"
	HeaderTrinoSchema  = "X-Trino-Schema"
	HeaderPrestoSchema = "X-Presto-Schema"
)

// HeaderTotalCount carries the unpaged size of a history listing.
const HeaderTotalCount = "X-Total-Count"

const (
	maxStatementBytes   = 1 << 20
	defaultHistoryLimit = 100
)

var (
	nextURITemplate = uritemplate.MustNew("{+base}/v1/statement/{id}/{token}")
	infoURITemplate = uritemplate.MustNew("{+base}/v1/query/{id}")
)

// Manager is the statement lifecycle the handler drives.
type Manager interface {
	Submit(ctx context.Context, sql string, opts statement.SubmitOptions) (*statement.Statement, error)
	Poll(ctx context.Context, id string, token int64) (*statement.Result, error)
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*statement.Statement, error)
	List(ctx context.Context) ([]statement.Info, error)
}

// ServerInfo is returned by GET /v1/info.
type ServerInfo struct {
	NodeVersion struct {
		Version string `json:"version"`
	} `json:"nodeVersion"`
	Environment string `json:"environment"`
	Coordinator bool   `json:"coordinator"`
	Starting    bool   `json:"starting"`
	Uptime      string `json:"uptime"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithBaseURL fixes the scheme and host used in nextUri and infoUri.
// Without it they are derived from each request.
func WithBaseURL(u string) Option {
	return func(h *Handler) { h.baseURL = strings.TrimRight(u, "/") }
}

// WithHistory serves GET /v1/history from s.
func WithHistory(s history.Store) Option {
	return func(h *Handler) { h.history = s }
}

// WithUserResolver sets how the statement user is derived. It runs before
// the user headers are consulted; an empty result falls back to them.
func WithUserResolver(f func(*http.Request) string) Option {
	return func(h *Handler) { h.userFrom = f }
}

// WithVersion sets the version reported by /v1/info.
func WithVersion(v, environment string) Option {
	return func(h *Handler) {
		h.version = v
		h.environment = environment
	}
}

// Handler serves the client protocol.
type Handler struct {
	mux         *http.ServeMux
	manager     Manager
	history     history.Store
	baseURL     string
	userFrom    func(*http.Request) string
	version     string
	environment string
	started     time.Time
}

// NewHandler creates a protocol handler.
func NewHandler(m Manager, opts ...Option) *Handler {
	h := &Handler{
		mux:         http.NewServeMux(),
		manager:     m,
		version:     "dev",
		environment: "sqlgate",
		started:     time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /v1/statement", h.submit)
	h.mux.HandleFunc("GET /v1/statement/{id}/{token}", h.poll)
	h.mux.HandleFunc("DELETE /v1/statement/{id}/{token}", h.cancel)
	h.mux.HandleFunc("GET /v1/query", h.listQueries)
	h.mux.HandleFunc("GET /v1/query/{id}", h.getQuery)
	h.mux.HandleFunc("DELETE /v1/query/{id}", h.cancelQuery)
	h.mux.HandleFunc("GET /v1/info", h.serverInfo)
	if h.history != nil {
		h.mux.HandleFunc("GET /v1/history", h.listHistory)
	}
}

// submit handles POST /v1/statement.
//
// @Summary      Submit a statement
// @Description  Queues SQL for execution and returns the first nextUri. Never waits for execution.
// @Tags         Statement
// @Accept       plain
// @Produce      json
// @Param        X-Trino-User    header  string  false  "Statement user"
// @Param        X-Trino-Schema  header  string  false  "Default schema for bare table names"
// @Param        sql             body    string  true   "SQL text"
// @Success      200  {object}  QueryResults
// @Failure      400  {object}  errorBody
// @Failure      503  {object}  errorBody
// @Router       /v1/statement [post]
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStatementBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading statement: "+err.Error())
		return
	}

	opts := statement.SubmitOptions{
		User:   h.user(r),
		Schema: firstHeader(r, HeaderTrinoSchema, HeaderPrestoSchema),
	}
	s, err := h.manager.Submit(r.Context(), string(body), opts)
	switch {
	case errors.Is(err, statement.ErrEmptyStatement):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, statement.ErrClosed), errors.Is(err, statement.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		slog.Error("submitting statement", "error", err)
		writeError(w, http.StatusInternalServerError, "submitting statement failed")
		return
	}

	base := h.base(r)
	writeJSON(w, http.StatusOK, QueryResults{
		ID:       s.ID,
		InfoURI:  expand(infoURITemplate, base, s.ID, ""),
		NextURI:  expand(nextURITemplate, base, s.ID, "0"),
		Stats:    newStats(statement.Queued, 0),
		Warnings: []any{},
	})
}

// poll handles GET /v1/statement/{id}/{token}.
//
// @Summary      Poll a statement
// @Description  Returns the page after token, or the current state when it is not ready. Repeating a token returns the same response.
// @Tags         Statement
// @Produce      json
// @Param        id     path  string   true  "Statement ID"
// @Param        token  path  integer  true  "Page token"
// @Success      200  {object}  QueryResults
// @Failure      400  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /v1/statement/{id}/{token} [get]
func (h *Handler) poll(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	token, ok := parseToken(w, r)
	if !ok {
		return
	}

	res, err := h.manager.Poll(r.Context(), id, token)
	if err != nil {
		writeStatementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render(r, res))
}

// cancel handles DELETE /v1/statement/{id}/{token}.
//
// @Summary      Cancel a statement
// @Description  Cancels a queued or running statement. Cancelling a finished statement is a no-op.
// @Tags         Statement
// @Param        id     path  string   true  "Statement ID"
// @Param        token  path  integer  true  "Page token"
// @Success      204
// @Failure      404  {object}  errorBody
// @Router       /v1/statement/{id}/{token} [delete]
func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if _, ok := parseToken(w, r); !ok {
		return
	}
	h.cancelQuery(w, r)
}

// cancelQuery handles DELETE /v1/query/{id}.
func (h *Handler) cancelQuery(w http.ResponseWriter, r *http.Request) {
	err := h.manager.Cancel(r.Context(), r.PathValue("id"))
	if err != nil && !errors.Is(err, statement.ErrAlreadyTerminal) {
		writeStatementError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listQueries handles GET /v1/query.
//
// @Summary      List statements
// @Description  Returns every retained statement, oldest first.
// @Tags         Query
// @Produce      json
// @Success      200  {array}  statement.Info
// @Router       /v1/query [get]
func (h *Handler) listQueries(w http.ResponseWriter, r *http.Request) {
	infos, err := h.manager.List(r.Context())
	if err != nil {
		slog.Error("listing statements", "error", err)
		writeError(w, http.StatusInternalServerError, "listing statements failed")
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// getQuery handles GET /v1/query/{id}.
//
// @Summary      Get a statement
// @Tags         Query
// @Produce      json
// @Param        id  path  string  true  "Statement ID"
// @Success      200  {object}  statement.Info
// @Failure      404  {object}  errorBody
// @Router       /v1/query/{id} [get]
func (h *Handler) getQuery(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStatementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}

// serverInfo handles GET /v1/info.
//
// @Summary      Server info
// @Tags         Server
// @Produce      json
// @Success      200  {object}  ServerInfo
// @Router       /v1/info [get]
func (h *Handler) serverInfo(w http.ResponseWriter, _ *http.Request) {
	var info ServerInfo
	info.NodeVersion.Version = h.version
	info.Environment = h.environment
	info.Coordinator = true
	info.Uptime = time.Since(h.started).Round(time.Second).String()
	writeJSON(w, http.StatusOK, info)
}

// listHistory handles GET /v1/history.
//
// @Summary      Statement history
// @Description  Returns terminal statements, newest first.
// @Tags         Query
// @Produce      json
// @Param        user    query  string   false  "Filter by user"
// @Param        state   query  string   false  "Filter by terminal state"
// @Param        limit   query  integer  false  "Maximum entries (default: 100)"
// @Param        offset  query  integer  false  "Entries to skip"
// @Success      200  {array}  history.Entry
// @Header       200  {integer}  X-Total-Count  "Entries matching the filter"
// @Failure      500  {object}  errorBody
// @Router       /v1/history [get]
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := history.Filter{
		User:  q.Get("user"),
		State: strings.ToUpper(q.Get("state")),
		Limit: defaultHistoryLimit,
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	entries, err := h.history.List(r.Context(), filter)
	if err != nil {
		slog.Error("listing history", "error", err)
		writeError(w, http.StatusInternalServerError, "listing history failed")
		return
	}
	total, err := h.history.Count(r.Context(), filter)
	if err != nil {
		slog.Error("counting history", "error", err)
		writeError(w, http.StatusInternalServerError, "listing history failed")
		return
	}
	w.Header().Set(HeaderTotalCount, strconv.Itoa(total))
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) render(r *http.Request, res *statement.Result) QueryResults {
	base := h.base(r)
	qr := QueryResults{
		ID:       res.ID,
		InfoURI:  expand(infoURITemplate, base, res.ID, ""),
		Columns:  columnsOf(res.Columns),
		Stats:    newStats(res.State, res.Rows),
		Warnings: []any{},
	}
	if len(res.Data) > 0 {
		qr.Data = res.Data
	}
	if res.HasNext {
		qr.NextURI = expand(nextURITemplate, base, res.ID, strconv.FormatInt(res.NextToken, 10))
	}
	if res.Err != nil {
		qr.Error = newQueryError(res.Err)
	}
	return qr
}

func (h *Handler) user(r *http.Request) string {
	if h.userFrom != nil {
		if u := h.userFrom(r); u != "" {
			return u
		}
	}
	return firstHeader(r, HeaderTrinoUser, HeaderPrestoUser)
}

func (h *Handler) base(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}

func expand(t *uritemplate.Template, base, id, token string) string {
	vals := uritemplate.Values{}
	vals.Set("base", uritemplate.String(base))
	vals.Set("id", uritemplate.String(id))
	vals.Set("token", uritemplate.String(token))
	s, err := t.Expand(vals)
	if err != nil {
		return ""
	}
	return s
}

func parseToken(w http.ResponseWriter, r *http.Request) (int64, bool) {
	token, err := strconv.ParseInt(r.PathValue("token"), 10, 64)
	if err != nil || token < 0 {
		writeError(w, http.StatusBadRequest, "invalid token")
		return 0, false
	}
	return token, true
}

func firstHeader(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.Header.Get(n)); v != "" {
			return v
		}
	}
	return ""
}

type errorBody struct {
	Error string `json:"error"`
}

func writeStatementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, statement.ErrNotFound):
		writeError(w, http.StatusNotFound, "query not found")
	case errors.Is(err, statement.ErrInvalidToken):
		writeError(w, http.StatusGone, err.Error())
	default:
		slog.Error("statement request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
