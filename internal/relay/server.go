package relay

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"duet/internal/codec"
	"duet/internal/domain"
	"duet/internal/metrics"
	"duet/internal/validation"
)

const (
	maxBodyBytes = 1 << 20

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Server exposes a relay backend over HTTP. It only ever handles public
// keys and ciphertext.
type Server struct {
	backend  domain.RelayClient
	validate *validation.Validator
	log      *logrus.Logger
	now      func() time.Time
}

// NewServer returns a Server storing state in backend.
func NewServer(backend domain.RelayClient, log *logrus.Logger) *Server {
	return &Server{
		backend:  backend,
		validate: validation.New(),
		log:      log,
		now:      time.Now,
	}
}

// Handler builds the relay router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog)

	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/prekey/{username}", s.handlePrekey).Methods(http.MethodGet)
	r.HandleFunc("/msg/{username}", s.handlePost).Methods(http.MethodPost)
	r.HandleFunc("/msg/{username}", s.handleFetch).Methods(http.MethodGet)
	r.HandleFunc("/msg/{username}/ack", s.handleAck).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// ackRequest is the body of POST /msg/{username}/ack.
type ackRequest struct {
	Count int `json:"count" validate:"gte=0"`
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var b domain.PreKeyBundle
	if err := s.decode(w, r, &b); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.validate.Struct(b); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.backend.Upload(r.Context(), b); err != nil {
		s.fail(w, r, err)
		return
	}
	s.entry(r).WithFields(logrus.Fields{
		"user": b.Username,
		"opks": len(b.OneTimePreKeys),
	}).Info("bundle registered")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePrekey(w http.ResponseWriter, r *http.Request) {
	username := domain.Username(mux.Vars(r)["username"])
	fb, err := s.backend.Download(r.Context(), username)
	metrics.PreKeyDownloads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.entry(r).WithFields(logrus.Fields{
		"user":   username,
		"opk_id": fb.OneTimePreKey.ID,
	}).Debug("one-time pre-key issued")
	s.respond(w, r, http.StatusOK, fb)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	to := domain.Username(mux.Vars(r)["username"])
	var msg domain.RelayMessage
	if err := s.decode(w, r, &msg); err != nil {
		s.fail(w, r, err)
		return
	}
	if msg.To == "" {
		msg.To = to
	}
	if msg.To != to {
		s.fail(w, r, fmt.Errorf("%w: recipient does not match path", domain.ErrInvalidMessage))
		return
	}
	if err := s.validate.RelayMessage(msg); err != nil {
		s.fail(w, r, err)
		return
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = s.now().Unix()
	}
	if err := s.backend.Post(r.Context(), msg); err != nil {
		s.fail(w, r, err)
		return
	}
	kind := "envelope"
	if msg.Handshake != nil {
		kind = "handshake"
	}
	metrics.RelayMessagesPosted.WithLabelValues(kind).Inc()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	username := domain.Username(mux.Vars(r)["username"])
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, r, domain.ErrInvalidMessage)
			return
		}
		limit = n
	}
	msgs, err := s.backend.Fetch(r.Context(), username, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.RelayMessage{}
	}
	s.respond(w, r, http.StatusOK, msgs)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	username := domain.Username(mux.Vars(r)["username"])
	var req ackRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.backend.Ack(r.Context(), username, req.Count); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads the request body with the codec named by Content-Type.
// Malformed bodies are reported as domain.ErrInvalidMessage.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Join(domain.ErrInvalidMessage, err)
	}
	c := codec.ByContentType(r.Header.Get("Content-Type"))
	if err := c.Unmarshal(body, v); err != nil {
		return errors.Join(domain.ErrInvalidMessage, err)
	}
	return nil
}

// respond writes v with the codec named by Accept.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	c := codec.ByContentType(r.Header.Get("Accept"))
	b, err := c.Marshal(v)
	if err != nil {
		s.entry(r).WithError(err).Error("encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.entry(r).WithError(err).Error("request failed")
	}
	s.respond(w, r, status, errorResponse{Error: err.Error()})
}

// StatusFor maps a relay error onto its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPreKeysExhausted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) entry(r *http.Request) *logrus.Entry {
	return s.log.WithField("request_id", r.Header.Get(RequestIDHeader))
}

// requestID stamps every request with an id, reusing the caller's if given.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures status and bytes for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// accessLog records method, route, status, bytes and duration for each request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RelayRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()

		s.entry(r).WithFields(logrus.Fields{
			"method":   r.Method,
			"route":    route,
			"remote":   r.RemoteAddr,
			"status":   rec.status,
			"bytes":    rec.bytes,
			"duration": s.now().Sub(start),
		}).Info("request")
	})
}
