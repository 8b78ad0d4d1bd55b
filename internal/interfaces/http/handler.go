package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eso_go/internal/domain"
	"eso_go/internal/infra"
	"eso_go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ValuationHandler serves the valuation API and the grant register over HTTP.
type ValuationHandler struct {
	svc       *service.ValuationService
	metrics   *infra.Metrics
	logger    *slog.Logger
	precision int32
	readLimit int64
	upgrader  websocket.Upgrader
}

// NewValuationHandler creates a ValuationHandler
func NewValuationHandler(svc *service.ValuationService, cfg *infra.Config, metrics *infra.Metrics, logger *slog.Logger) *ValuationHandler {
	return &ValuationHandler{
		svc:       svc,
		metrics:   metrics,
		logger:    logger.With("module", "http"),
		precision: cfg.Valuation.ReportPrecision,
		readLimit: cfg.Server.StreamReadLimit,
		upgrader:  websocket.Upgrader{CheckOrigin: sameOrigin},
	}
}

// RegisterRoutes binds the /v1 API to router
func (h *ValuationHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/v1")
	{
		api.POST("/valuations", h.Value)
		api.POST("/valuations/strict", h.ValueStrict)
		api.GET("/stream", h.Stream)

		api.GET("/grants", h.ListGrants)
		api.PUT("/grants/:id", h.PutGrant)
		api.GET("/grants/:id", h.GetGrant)
		api.DELETE("/grants/:id", h.DeleteGrant)
		api.POST("/grants/:id/valuation", h.ValueGrant)
	}
}

// NewRouter builds the gin engine with health, metrics and the /v1 API
func NewRouter(h *ValuationHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	h.RegisterRoutes(&r.RouterGroup)
	return r
}

func (h *ValuationHandler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

// ValuationRequest is the eleven inputs plus an optional exercise policy
type ValuationRequest struct {
	domain.Inputs
	Policy string `json:"policy"`
}

// inputs applies the request policy to its inputs
func (r ValuationRequest) inputs() (domain.Inputs, domain.ExercisePolicy, error) {
	policy, err := domain.ParseExercisePolicy(r.Policy)
	if err != nil {
		return domain.Inputs{}, "", err
	}
	return policy.Apply(r.Inputs), policy, nil
}

// ValuationResponse carries the raw pair and its rounded form.
// Non-finite numbers are encoded as null.
type ValuationResponse struct {
	GrantID             string   `json:"grant_id,omitempty"`
	Holder              string   `json:"holder,omitempty"`
	Policy              string   `json:"policy,omitempty"`
	Value               *float64 `json:"value"`
	ExpectedLife        *float64 `json:"expected_life"`
	ValueRounded        string   `json:"value_rounded"`
	ExpectedLifeRounded string   `json:"expected_life_rounded"`
	Method              string   `json:"method"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error     string   `json:"error"`
	Parameter string   `json:"parameter,omitempty"`
	Value     *float64 `json:"value,omitempty"`
}

func (h *ValuationHandler) toResponse(v domain.Valuation, policy domain.ExercisePolicy) ValuationResponse {
	value, life := v.Rounded(h.precision)
	return ValuationResponse{
		Policy:              string(policy),
		Value:               finite(v.Value),
		ExpectedLife:        finite(v.ExpectedLife),
		ValueRounded:        value.StringFixed(h.precision),
		ExpectedLifeRounded: life.StringFixed(h.precision),
		Method:              string(v.Method),
	}
}

func (h *ValuationHandler) grantResponse(res domain.GrantValuation) ValuationResponse {
	out := h.toResponse(res.Valuation, res.Policy)
	out.GrantID = res.GrantID
	out.Holder = res.Holder
	return out
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// errorResponse maps err to a status code and body
func errorResponse(err error) (int, ErrorResponse) {
	body := ErrorResponse{Error: err.Error()}

	if pe, ok := domain.AsParameterError(err); ok {
		body.Parameter = pe.Parameter
		body.Value = finite(pe.Value)
		return http.StatusUnprocessableEntity, body
	}

	switch {
	case errors.Is(err, domain.ErrStepsAboveLimit):
		body.Parameter = "steps"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrUnknownPolicy):
		body.Parameter = "policy"
		return http.StatusBadRequest, body
	case errors.Is(err, service.ErrGrantNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, service.ErrNoRegister),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, body
	default:
		return http.StatusInternalServerError, body
	}
}

func (h *ValuationHandler) fail(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
	}
	c.JSON(status, body)
}

// ============================================================
// Ad-hoc valuation
// ============================================================

// Value values the request on the permissive path
func (h *ValuationHandler) Value(c *gin.Context) {
	var req ValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	in, policy, err := req.inputs()
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.Value(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(res, policy))
}

// ValueStrict validates the request before valuing it
func (h *ValuationHandler) ValueStrict(c *gin.Context) {
	var req ValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	in, policy, err := req.inputs()
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.ValueStrict(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(res, policy))
}

// ============================================================
// Grant register
// ============================================================

// ListGrants returns the register ordered by id, optionally filtered by ?holder=
func (h *ValuationHandler) ListGrants(c *gin.Context) {
	var (
		grants []domain.OptionGrant
		err    error
	)
	if holder := c.Query("holder"); holder != "" {
		grants, err = h.svc.GrantsByHolder(holder)
	} else {
		grants, err = h.svc.Grants()
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, grants)
}

// PutGrant creates or replaces the grant named in the path
func (h *ValuationHandler) PutGrant(c *gin.Context) {
	var grant domain.OptionGrant
	if err := c.ShouldBindJSON(&grant); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	grant.ID = c.Param("id")

	if err := h.svc.SaveGrant(&grant); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// GetGrant returns one grant
func (h *ValuationHandler) GetGrant(c *gin.Context) {
	grant, err := h.svc.Grant(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// DeleteGrant removes one grant
func (h *ValuationHandler) DeleteGrant(c *gin.Context) {
	if err := h.svc.RemoveGrant(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ValueGrant values a stored grant on the strict path
func (h *ValuationHandler) ValueGrant(c *gin.Context) {
	res, err := h.svc.ValueStoredGrant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.grantResponse(res))
}

// ============================================================
// Stream
// ============================================================

// StreamRequest is one websocket frame. Strict selects the validated path.
type StreamRequest struct {
	ValuationRequest
	ID     string `json:"id"`
	Strict bool   `json:"strict"`
}

// StreamReply answers one StreamRequest with either Result or Error set
type StreamReply struct {
	ID     string             `json:"id,omitempty"`
	Result *ValuationResponse `json:"result,omitempty"`
	Error  *ErrorResponse     `json:"error,omitempty"`
}

// Stream upgrades to a websocket and answers each request frame in order
func (h *ValuationHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	h.metrics.IncrementStreams()
	defer h.metrics.DecrementStreams()

	conn.SetReadLimit(h.readLimit)
	ctx := c.Request.Context()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Stream closed", slog.Any("error", err))
			}
			return
		}

		reply := h.answer(ctx, data)
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("Stream write failed", slog.Any("error", err))
			return
		}
	}
}

func (h *ValuationHandler) answer(ctx context.Context, data []byte) StreamReply {
	var req StreamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return StreamReply{Error: &ErrorResponse{Error: err.Error()}}
	}

	reply := StreamReply{ID: req.ID}
	in, policy, err := req.inputs()
	if err != nil {
		_, body := errorResponse(err)
		reply.Error = &body
		return reply
	}

	var res domain.Valuation
	if req.Strict {
		res, err = h.svc.ValueStrict(ctx, in)
	} else {
		res, err = h.svc.Value(ctx, in)
	}
	if err != nil {
		_, body := errorResponse(err)
		reply.Error = &body
		return reply
	}

	resp := h.toResponse(res, policy)
	reply.Result = &resp
	return reply
}

// sameOrigin accepts requests without an Origin header, same-host origins and localhost
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	requestHost := r.Host
	originHost := u.Host
	if host, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = host
	}
	if host, _, err := net.SplitHostPort(originHost); err == nil {
		originHost = host
	}

	if strings.EqualFold(requestHost, originHost) {
		return true
	}
	return originHost == "localhost" || originHost == "127.0.0.1"
}
