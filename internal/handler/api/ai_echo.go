package api

import (
	"net/http"
	"strings"
	"time"

	"StockSense/internal/domain/models"
	domrepo "StockSense/internal/domain/repository"
	domsvc "StockSense/internal/domain/service"
	"StockSense/internal/service/metrics"
	"StockSense/internal/service/ratelimit"
	"StockSense/internal/usecase"
	xhttp "StockSense/pkg/http"
	xlogger "StockSense/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AIHandler serves prediction, training and inspection endpoints.
type AIHandler struct {
	logger    *xlogger.Logger
	predictor *usecase.Predictor
	pipeline  *usecase.Pipeline
	symbolJob *usecase.TrainSymbolJob
	status    *usecase.StatusUseCase
	features  *usecase.FeaturesUseCase
	jobs      domsvc.JobEnqueuer
	rl        *ratelimit.Limiter
	now       func() time.Time
}

type AIHandlerOption func(*AIHandler)

// WithJobQueue hands training requests to background workers instead of running them in the request.
func WithJobQueue(jobs domsvc.JobEnqueuer) AIHandlerOption {
	return func(h *AIHandler) { h.jobs = jobs }
}

// WithRateLimiter limits the expensive endpoints per client IP.
func WithRateLimiter(rl *ratelimit.Limiter) AIHandlerOption {
	return func(h *AIHandler) { h.rl = rl }
}

func NewAIHandler(
	logger *xlogger.Logger,
	predictor *usecase.Predictor,
	pipeline *usecase.Pipeline,
	symbolJob *usecase.TrainSymbolJob,
	status *usecase.StatusUseCase,
	features *usecase.FeaturesUseCase,
	opts ...AIHandlerOption,
) *AIHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.NewNop()
	}
	h := &AIHandler{
		logger:    logger,
		predictor: predictor,
		pipeline:  pipeline,
		symbolJob: symbolJob,
		status:    status,
		features:  features,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *AIHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/health", h.Health)

	g := e.Group("/api/ai")
	g.GET("/predict/lstm-pretrained", h.observe("predict_pretrained", h.PredictPretrained))
	g.GET("/predict/lstm", h.observe("predict_fresh", h.PredictFresh))
	g.POST("/train-models", h.observe("train_models", h.TrainModels))
	g.POST("/train-symbol", h.observe("train_symbol", h.TrainSymbol))
	g.GET("/training-status", h.observe("training_status", h.TrainingStatus))
	g.GET("/features", h.observe("features", h.Features))
}

func (h *AIHandler) observe(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()
		return next(c)
	}
}

func (h *AIHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl == nil || h.rl.Allow(c.RealIP()+":"+endpoint) {
		return true
	}
	metrics.RateLimited.WithLabelValues(endpoint).Inc()
	h.logger.Warn("rate limited", xlogger.String("endpoint", endpoint), xlogger.String("remote", c.RealIP()))
	return false
}

func (h *AIHandler) PredictPretrained(c echo.Context) error {
	return h.predict(c, "predict_pretrained", false)
}

// PredictFresh trains a new model before predicting, ignoring the store.
func (h *AIHandler) PredictFresh(c echo.Context) error {
	return h.predict(c, "predict_fresh", true)
}

func (h *AIHandler) predict(c echo.Context, endpoint string, fresh bool) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many prediction requests"))
	}

	res, err := h.predictor.Predict(c.Request().Context(), usecase.PredictParams{
		Symbol:      strings.ToUpper(req.Symbol),
		Period:      domrepo.Period(req.Period),
		FutureDays:  req.FutureDays,
		Fresh:       fresh,
		Simulations: req.Simulations,
	})
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// TrainModels runs or enqueues a bulk run for one market, or for all markets when none is given.
func (h *AIHandler) TrainModels(c echo.Context) error {
	const endpoint = "train_models"
	req := &models.TrainModelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many training requests"))
	}
	ctx := c.Request().Context()
	period := domrepo.Period(req.Period)

	if h.jobs != nil {
		markets := h.pipeline.Markets()
		if req.Market != "" {
			markets = []string{req.Market}
		}
		for _, m := range markets {
			payload := usecase.TrainMarketPayload{Market: m, Period: req.Period, Epochs: req.Epochs}
			if err := h.jobs.PublishMessage(ctx, usecase.JobTrainMarket, payload); err != nil {
				return h.fail(c, endpoint, err)
			}
		}
		h.logger.Info("bulk training enqueued", xlogger.Strings("markets", markets))
		return xhttp.AcceptedResponse(c, map[string]interface{}{"queued": markets, "period": req.Period})
	}

	if req.Market != "" {
		s, err := h.pipeline.RunMarket(ctx, usecase.MarketRunParams{Market: req.Market, Period: period, Epochs: req.Epochs})
		if err != nil {
			return h.fail(c, endpoint, err)
		}
		return xhttp.SuccessResponse(c, s)
	}
	report, err := h.pipeline.RunFull(ctx, period, req.Epochs)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *AIHandler) TrainSymbol(c echo.Context) error {
	const endpoint = "train_symbol"
	req := &models.TrainSymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many training requests"))
	}
	payload := usecase.TrainSymbolPayload{Symbol: strings.ToUpper(req.Symbol), Period: req.Period, Epochs: req.Epochs}

	if h.jobs != nil {
		if err := h.jobs.PublishMessage(c.Request().Context(), usecase.JobTrainSymbol, payload); err != nil {
			return h.fail(c, endpoint, err)
		}
		return xhttp.AcceptedResponse(c, payload)
	}
	md, err := h.symbolJob.Run(c.Request().Context(), payload)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, md)
}

func (h *AIHandler) TrainingStatus(c echo.Context) error {
	st, err := h.status.Status(c.Request().Context())
	if err != nil {
		return h.fail(c, "training_status", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *AIHandler) Features(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.features.GetFeatures(c.Request().Context(), usecase.GetFeaturesParams{
		Symbol: strings.ToUpper(req.Symbol),
		Period: domrepo.Period(req.Period),
		Limit:  req.Limit,
	})
	if err != nil {
		return h.fail(c, "features", err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *AIHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": "ok",
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}

func (h *AIHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	kind := models.KindOf(err)
	metrics.APIErrors.WithLabelValues(endpoint, string(kind)).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Warn(endpoint+" rejected", xlogger.String("kind", string(kind)), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain error kinds to HTTP errors.
func toAppError(err error) *xhttp.AppError {
	kind := models.KindOf(err)
	code := "ERR_" + strings.ToUpper(string(kind))
	switch kind {
	case models.KindInvalidInput, models.KindInsufficientData, models.KindNonFiniteData, models.KindUpstreamFetch:
		return xhttp.NewAppError(code, "", err.Error(), http.StatusBadRequest).WithError(err)
	case models.KindInProgress:
		return xhttp.AcceptedError(err.Error()).WithError(err)
	case models.KindFeatureContract:
		return xhttp.ConflictError(err.Error()).WithError(err)
	}
	return xhttp.InternalError("prediction service failure").WithParam("kind", string(kind)).WithError(err)
}
