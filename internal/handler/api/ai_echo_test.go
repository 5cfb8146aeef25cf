package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"StockSense/internal/domain/models"
	"StockSense/internal/service/ratelimit"
	"StockSense/internal/services/features"
	"StockSense/internal/services/lstm"
	"StockSense/internal/testutil"
	"StockSense/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	e     *echo.Echo
	store *testutil.MemStore
	data  *testutil.StaticData
}

func newFixture(t *testing.T, opts ...AIHandlerOption) *fixture {
	t.Helper()
	store := testutil.NewMemStore()
	data := &testutil.StaticData{
		Bars: map[string][]models.Bar{
			"AAPL":  testutil.SyntheticBars("AAPL", 300),
			"MSFT":  testutil.SyntheticBars("MSFT", 260),
			"SHORT": testutil.SyntheticBars("SHORT", 40),
		},
		Markets: map[string][]string{"us": {"AAPL", "MSFT"}},
	}
	trainer := usecase.NewTrainer(store, nil, nil, nil,
		usecase.WithEpochs(1),
		usecase.WithNetwork(func(c *lstm.Config) { c.Units1, c.Units2, c.DenseUnits = 6, 4, 3 }),
	)
	predictor := usecase.NewPredictor(usecase.PredictorConfig{}, store, data, trainer, nil, nil, nil)
	pipeline := usecase.NewPipeline(usecase.PipelineConfig{
		Workers: 2,
		MinBars: 200,
		Markets: []string{"us", "indian"},
	}, trainer, data, data, store, nil, nil, nil)

	h := NewAIHandler(nil, predictor, pipeline,
		usecase.NewTrainSymbolJob(data, trainer, predictor, nil),
		usecase.NewStatusUseCase([]string{"us"}, store, store, nil),
		usecase.NewFeaturesUseCase(data),
		opts...,
	)
	e := echo.New()
	h.RegisterRoutes(e)
	return &fixture{e: e, store: store, data: data}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}

func TestPredictPretrained_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		target string
	}{
		{"missing symbol", "/api/ai/predict/lstm-pretrained"},
		{"horizon too long", "/api/ai/predict/lstm-pretrained?symbol=AAPL&future_days=91"},
		{"bad period", "/api/ai/predict/lstm-pretrained?symbol=AAPL&period=3d"},
		{"non numeric horizon", "/api/ai/predict/lstm-pretrained?symbol=AAPL&future_days=abc"},
		{"too many simulations", "/api/ai/predict/lstm?symbol=AAPL&simulations=11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := f.do(t, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.store.Keys(), "nothing trained for rejected requests")
}

func TestPredictPretrained_FallbackThenHit(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/ai/predict/lstm-pretrained?symbol=aapl&future_days=7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first models.PredictionResult
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.False(t, first.UsingPretrained)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Len(t, first.Predictions, 7)
	assert.Len(t, first.FutureDates, 7)
	assert.Equal(t, 1, first.NumSimulations, "fallback trains a single model")

	rec, env = f.do(t, http.MethodGet, "/api/ai/predict/lstm-pretrained?symbol=AAPL&future_days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	var second models.PredictionResult
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.True(t, second.UsingPretrained)
	require.NotNil(t, second.ModelMetadata)
	assert.Equal(t, features.Names, second.ModelMetadata.Features)
}

func TestPredict_ErrorKinds(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/ai/predict/lstm?symbol=NOPE")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_UPSTREAM_FETCH", errorCode(t, env))

	rec, env = f.do(t, http.MethodGet, "/api/ai/predict/lstm?symbol=SHORT")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_INSUFFICIENT_DATA", errorCode(t, env))
}

func TestPredictFresh_Simulations(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/ai/predict/lstm?symbol=AAPL&future_days=3&simulations=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.PredictionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.UsingPretrained)
	assert.Equal(t, 2, res.NumSimulations)
	require.Len(t, res.Simulations, 2)
	assert.Len(t, res.Std, 3)
	assert.Len(t, res.Predictions, 3)
	assert.Equal(t, []string{"AAPL"}, f.store.Keys())
}

func TestPredictPretrained_FeatureContract(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodPost, "/api/ai/train-symbol?symbol=AAPL&epochs=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	a, ok, err := f.store.Load(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	swapped := append([]string(nil), a.Metadata.Features...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	a.Metadata.Features = swapped
	f.store.Put(a)

	rec, env := f.do(t, http.MethodGet, "/api/ai/predict/lstm-pretrained?symbol=AAPL")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ERR_CONFLICT", errorCode(t, env))
}

func TestTrainSymbol_Queued(t *testing.T) {
	q := &testutil.RecordingQueue{}
	f := newFixture(t, WithJobQueue(q))

	rec, _ := f.do(t, http.MethodPost, "/api/ai/train-symbol?symbol=msft&period=1y")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.Messages, 1)
	assert.Equal(t, usecase.JobTrainSymbol, q.Messages[0].Type)
	assert.Equal(t, usecase.TrainSymbolPayload{Symbol: "MSFT", Period: "1y", Epochs: 10}, q.Messages[0].Payload)
	assert.Empty(t, f.store.Keys())
}

func TestTrainModels_Queued(t *testing.T) {
	q := &testutil.RecordingQueue{}
	f := newFixture(t, WithJobQueue(q))

	rec, _ := f.do(t, http.MethodPost, "/api/ai/train-models?epochs=3")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.Messages, 2)
	assert.Equal(t, usecase.TrainMarketPayload{Market: "us", Period: "1y", Epochs: 3}, q.Messages[0].Payload)
	assert.Equal(t, usecase.TrainMarketPayload{Market: "indian", Period: "1y", Epochs: 3}, q.Messages[1].Payload)

	rec, _ = f.do(t, http.MethodPost, "/api/ai/train-models?market=us")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, q.Messages, 3)
}

func TestTrainModels_SyncAndStatus(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/ai/train-models?market=us&epochs=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s models.Summary
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, "us", s.Market)
	assert.Equal(t, 2, s.Successful)
	assert.Zero(t, s.Failed)

	rec, _ = f.do(t, http.MethodPost, "/api/ai/train-models?market=mars")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = f.do(t, http.MethodGet, "/api/ai/training-status")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.TrainingStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 2, st.TotalModels)
	require.Contains(t, st.Markets, "us")
	assert.Equal(t, 2, st.Markets["us"].TotalStocks)
}

func TestFeatures(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/ai/features?symbol=AAPL&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.FeatureSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 10, snap.Count)
	assert.Len(t, snap.Rows, 10)
	assert.Equal(t, features.Names, snap.Features)

	rec, _ = f.do(t, http.MethodGet, "/api/ai/features?symbol=AAPL&limit=0&period=10y")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, WithRateLimiter(ratelimit.New(1, 0.0001)))

	rec, _ := f.do(t, http.MethodGet, "/api/ai/predict/lstm?symbol=NOPE")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := f.do(t, http.MethodGet, "/api/ai/predict/lstm?symbol=NOPE")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, env))

	rec, _ = f.do(t, http.MethodGet, "/api/ai/predict/lstm-pretrained?symbol=NOPE")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "endpoints have separate buckets")
}

func TestToAppError(t *testing.T) {
	assert.Equal(t, http.StatusAccepted, toAppError(models.ErrTrainingInProgress).Status)
	assert.Equal(t, http.StatusBadRequest, toAppError(models.ErrInvalidInput).Status)
	assert.Equal(t, http.StatusInternalServerError, toAppError(models.ErrStorage).Status)
	assert.Equal(t, http.StatusInternalServerError, toAppError(context.Canceled).Status)
}
