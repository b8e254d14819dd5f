package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/easyparcel/pkg/easyparcel"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Gateway is the subset of *easyparcel.Client the server exposes.
type Gateway interface {
	CheckBalance(ctx context.Context) (*easyparcel.Result, error)
	GetRates(ctx context.Context, shipment easyparcel.Payload) (*easyparcel.Result, error)
	GetBulkRates(ctx context.Context, shipments []easyparcel.Payload) (*easyparcel.Result, error)
	SubmitOrder(ctx context.Context, order easyparcel.Payload) (*easyparcel.Result, error)
	SubmitBulkOrders(ctx context.Context, orders []easyparcel.Payload) (*easyparcel.Result, error)
	PayBulkOrders(ctx context.Context, orderNos []string) (*easyparcel.Result, error)
	GetParcelCategoryList(ctx context.Context) (*easyparcel.Result, error)
	GetCourierList(ctx context.Context) (*easyparcel.Result, error)
	GetCourierDropoff(ctx context.Context, courierCode, postcode string) (*easyparcel.Result, error)
	Call(ctx context.Context, operation string, params easyparcel.Payload) (*easyparcel.Result, error)
}

var _ Gateway = (*easyparcel.Client)(nil)

// Server is the HTTP bridge in front of the EasyParcel gateway.
type Server struct {
	port     int
	gateway  Gateway
	logger   *otelzap.Logger
	gatherer prometheus.Gatherer
}

// Config holds server configuration.
type Config struct {
	Port int
	// Gatherer backs /metrics; defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// New creates a new server instance.
func New(cfg Config, gateway Gateway, logger *otelzap.Logger) *Server {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		port:     cfg.Port,
		gateway:  gateway,
		logger:   logger,
		gatherer: gatherer,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Get("/balance", s.handleBalance)
	r.Post("/rates", s.handleRates)
	r.Post("/orders", s.handleSubmitOrders)
	r.Post("/orders/pay", s.handlePayOrders)
	r.Get("/couriers", s.handleCouriers)
	r.Get("/couriers/{courier}/dropoff", s.handleDropoff)
	r.Get("/parcel-categories", s.handleParcelCategories)
	r.Post("/call/{operation}", s.handleCall)

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	res, err := s.gateway.CheckBalance(r.Context())
	s.reply(w, r, res, err)
}

// handleRates accepts one shipment object or a list of them.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	one, many, err := decodePayloads(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var res *easyparcel.Result
	if many != nil {
		res, err = s.gateway.GetBulkRates(r.Context(), many)
	} else {
		res, err = s.gateway.GetRates(r.Context(), one)
	}
	s.reply(w, r, res, err)
}

// handleSubmitOrders accepts one order object or a list of them.
func (s *Server) handleSubmitOrders(w http.ResponseWriter, r *http.Request) {
	one, many, err := decodePayloads(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var res *easyparcel.Result
	if many != nil {
		res, err = s.gateway.SubmitBulkOrders(r.Context(), many)
	} else {
		res, err = s.gateway.SubmitOrder(r.Context(), one)
	}
	s.reply(w, r, res, err)
}

type payRequest struct {
	OrderNo  string   `json:"order_no"`
	OrderNos []string `json:"order_nos"`
}

func (s *Server) handlePayOrders(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	orderNos := req.OrderNos
	if req.OrderNo != "" {
		orderNos = append([]string{req.OrderNo}, orderNos...)
	}
	if len(orderNos) == 0 {
		s.badRequest(w, fmt.Errorf("%w: order_no", easyparcel.ErrMissingField))
		return
	}
	res, err := s.gateway.PayBulkOrders(r.Context(), orderNos)
	s.reply(w, r, res, err)
}

func (s *Server) handleCouriers(w http.ResponseWriter, r *http.Request) {
	res, err := s.gateway.GetCourierList(r.Context())
	s.reply(w, r, res, err)
}

func (s *Server) handleDropoff(w http.ResponseWriter, r *http.Request) {
	postcode := r.URL.Query().Get("postcode")
	if postcode == "" {
		s.badRequest(w, fmt.Errorf("%w: postcode", easyparcel.ErrMissingField))
		return
	}
	res, err := s.gateway.GetCourierDropoff(r.Context(), chi.URLParam(r, "courier"), postcode)
	s.reply(w, r, res, err)
}

func (s *Server) handleParcelCategories(w http.ResponseWriter, r *http.Request) {
	res, err := s.gateway.GetParcelCategoryList(r.Context())
	s.reply(w, r, res, err)
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	params := easyparcel.Payload{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	res, err := s.gateway.Call(r.Context(), chi.URLParam(r, "operation"), params)
	s.reply(w, r, res, err)
}

type errorBody struct {
	Error string `json:"error"`
}

// reply writes a normalized result. Remote API errors are part of the body
// with status 200; only local failures change the status code.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, res *easyparcel.Result, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, easyparcel.ErrInvalidOperation), errors.Is(err, easyparcel.ErrMissingField):
			status = http.StatusBadRequest
		case errors.Is(err, easyparcel.ErrRequestFailed):
			status = http.StatusBadGateway
		}
		s.logger.Ctx(r.Context()).Error("Gateway call failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodePayloads reads a JSON object or array body.
func decodePayloads(r *http.Request) (easyparcel.Payload, []easyparcel.Payload, error) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []easyparcel.Payload
		if err := json.Unmarshal(body, &many); err != nil {
			return nil, nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if len(many) == 0 {
			return nil, nil, errors.New("empty payload list")
		}
		return nil, many, nil
	}
	var one easyparcel.Payload
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return one, nil, nil
}
