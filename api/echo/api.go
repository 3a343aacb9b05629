//nolint:varnamelen
package echo

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pilab-dev/helpline/api"
	"github.com/pilab-dev/helpline/domain"
	"github.com/pilab-dev/helpline/errors"
	"github.com/pilab-dev/helpline/router"
	"github.com/pilab-dev/helpline/routing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// DefaultActor is recorded for admin commands that name no actor.
const DefaultActor = "admin"

// HelplineAPI serves the gateway webhooks and the admin endpoints.
type HelplineAPI struct {
	router     *router.Router
	registry   *routing.Registry
	adminToken string
	gatherer   prometheus.Gatherer
	health     func(ctx context.Context) error
}

// Option customizes a HelplineAPI.
type Option func(*HelplineAPI)

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *HelplineAPI) { a.gatherer = g }
}

// WithHealthCheck makes /healthz report the result of check.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(a *HelplineAPI) { a.health = check }
}

// NewHelplineAPI creates the API. An empty adminToken rejects every admin
// request.
func NewHelplineAPI(r *router.Router, registry *routing.Registry, adminToken string, opts ...Option) *HelplineAPI {
	a := &HelplineAPI{
		router:     r,
		registry:   registry,
		adminToken: adminToken,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes registers the helpline routes.
func (a *HelplineAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/sms", a.InboundSMSHandler)
	e.POST("/webhooks/chat", a.ChatEventHandler)

	e.GET("/healthz", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))

	admin := e.Group("/admin", middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Validator: a.validateAdminToken,
		ErrorHandler: func(_ error, c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("missing or invalid admin token"))
		},
	}))
	admin.GET("/pods", a.ListPodsHandler)
	admin.POST("/pods", a.SetPodStateHandler)
	admin.POST("/sessions/command", a.SessionCommandHandler)
	admin.DELETE("/sessions", a.EndSessionHandler)
}

func (a *HelplineAPI) validateAdminToken(key string, _ echo.Context) (bool, error) {
	if a.adminToken == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(a.adminToken)) == 1, nil
}

// InboundSMSHandler routes one user message. A non-2xx answer asks the
// gateway to deliver it again.
func (a *HelplineAPI) InboundSMSHandler(c echo.Context) error {
	var req api.InboundSMSRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("malformed request body"))
	}
	if req.From == "" || req.To == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("from and to are required"))
	}

	err := a.router.HandleInbound(c.Request().Context(), domain.InboundMessage{
		ContactAddress: req.From,
		OriginNumber:   req.To,
		Body:           req.Body,
		Attachments:    req.Attachments,
		ReceivedAt:     time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("origin", req.To).Msg("failed to route inbound message")
		return a.routerError(c, err)
	}
	return c.JSON(http.StatusOK, api.StatusResponse{Status: "accepted"})
}

// ChatEventHandler relays an operator message or runs the command it holds.
func (a *HelplineAPI) ChatEventHandler(c echo.Context) error {
	var req api.ChatEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("malformed request body"))
	}
	if req.PodHandle == "" || req.ThreadID == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("pod_handle and thread_id are required"))
	}

	err := a.router.HandleOperatorMessage(c.Request().Context(), domain.OperatorMessage{
		EventID:    req.EventID,
		PodHandle:  req.PodHandle,
		ThreadID:   req.ThreadID,
		OperatorID: req.OperatorID,
		Body:       req.Body,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("event_id", req.EventID).
			Str("thread_id", req.ThreadID).
			Msg("operator message not delivered")
		return a.routerError(c, err)
	}
	return c.JSON(http.StatusOK, api.StatusResponse{Status: "accepted"})
}

// ListPodsHandler lists the pods of ?region= (the overflow group when
// empty), demo pods with ?demo=true.
func (a *HelplineAPI) ListPodsHandler(c echo.Context) error {
	region := c.QueryParam("region")
	demo := c.QueryParam("demo") == "true"

	pods, err := a.registry.Pods(c.Request().Context(), region, demo)
	if err != nil {
		log.Error().Err(err).Str("region", region).Msg("failed to list pods")
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("failed to list pods"))
	}
	if pods == nil {
		pods = []domain.Pod{}
	}
	return c.JSON(http.StatusOK, api.PodsResponse{
		Region: a.registry.Regions().Group(region),
		Demo:   demo,
		Pods:   pods,
	})
}

// SetPodStateHandler opens or closes a pod.
func (a *HelplineAPI) SetPodStateHandler(c echo.Context) error {
	var req api.PodStateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("malformed request body"))
	}
	if req.Pod == "" {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("pod is required"))
	}

	eps := make([]domain.EntryPoint, 0, len(req.EntryPoints))
	for _, s := range req.EntryPoints {
		ep, err := domain.ParseEntryPoint(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest(err.Error()))
		}
		eps = append(eps, ep)
	}

	if err := a.registry.SetPodState(c.Request().Context(), req.Region, req.Pod, eps); err != nil {
		log.Error().Err(err).Str("pod", req.Pod).Msg("failed to update pod state")
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("failed to update pod state"))
	}
	return c.JSON(http.StatusOK, api.StatusResponse{Status: "updated"})
}

// SessionCommandHandler runs an admin command against a session.
func (a *HelplineAPI) SessionCommandHandler(c echo.Context) error {
	var req api.SessionCommandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("malformed request body"))
	}
	key, err := a.sessionKey(req.SessionSelector)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest(err.Error()))
	}

	cmd, err := router.NewCommand(req.Command, req.Arg)
	if err != nil {
		if stderrors.Is(err, domain.ErrUnknownCommand) {
			return c.JSON(http.StatusBadRequest, errors.NewUnknownCommand(req.Command))
		}
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest(err.Error()))
	}

	actor := req.Actor
	if actor == "" {
		actor = DefaultActor
	}
	if err := a.router.Execute(c.Request().Context(), key, cmd, actor); err != nil {
		log.Warn().Err(err).Str("command", cmd.Name()).Msg("session command failed")
		return a.routerError(c, err)
	}
	return c.JSON(http.StatusOK, api.StatusResponse{Status: "done", SessionKey: key})
}

// EndSessionHandler ends the session selected by the query parameters.
// Ending a session that does not exist succeeds.
func (a *HelplineAPI) EndSessionHandler(c echo.Context) error {
	key, err := a.sessionKey(api.SessionSelector{
		SessionKey:     c.QueryParam("session_key"),
		ContactAddress: c.QueryParam("contact_address"),
		OriginNumber:   c.QueryParam("origin_number"),
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest(err.Error()))
	}

	actor := c.QueryParam("actor")
	if actor == "" {
		actor = DefaultActor
	}
	if err := a.router.EndSession(c.Request().Context(), key, actor); err != nil {
		log.Error().Err(err).Str("session", key).Msg("failed to end session")
		return a.routerError(c, err)
	}
	return c.JSON(http.StatusOK, api.StatusResponse{Status: "ended", SessionKey: key})
}

// HealthHandler reports whether the backing store is reachable.
func (a *HelplineAPI) HealthHandler(c echo.Context) error {
	if a.health != nil {
		if err := a.health(c.Request().Context()); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			return c.JSON(http.StatusServiceUnavailable, errors.NewTemporarilyUnavailable(err.Error()))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (a *HelplineAPI) sessionKey(sel api.SessionSelector) (string, error) {
	if sel.SessionKey != "" {
		return sel.SessionKey, nil
	}
	if sel.ContactAddress == "" || sel.OriginNumber == "" {
		return "", stderrors.New("session_key or contact_address and origin_number are required")
	}
	return a.router.SessionKey(sel.ContactAddress, sel.OriginNumber)
}

// routerError maps router errors to API errors. Errors the caller cannot fix
// by retrying are 4xx; everything else is 5xx so gateways redeliver.
func (a *HelplineAPI) routerError(c echo.Context, err error) error {
	switch {
	case stderrors.Is(err, domain.ErrSessionNotFound), stderrors.Is(err, domain.ErrThreadNotFound):
		return c.JSON(http.StatusNotFound, errors.NewNotFound(err.Error()))
	case stderrors.Is(err, domain.ErrUnknownCommand):
		return c.JSON(http.StatusBadRequest, &errors.APIError{Code: errors.UnknownCommand, Description: err.Error()})
	case stderrors.Is(err, domain.ErrUnknownRegion),
		stderrors.Is(err, domain.ErrPodNotFound),
		stderrors.Is(err, domain.ErrInvalidTransition):
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest(err.Error()))
	case stderrors.Is(err, domain.ErrStaleSession), stderrors.Is(err, domain.ErrThreadInactive):
		return c.JSON(http.StatusConflict, errors.NewInvalidRequest(err.Error()))
	case stderrors.Is(err, domain.ErrSendFailed):
		return c.JSON(http.StatusBadGateway, errors.NewTemporarilyUnavailable(err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("internal error"))
	}
}
