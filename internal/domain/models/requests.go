package models

// Requests for the prediction and training HTTP endpoints.

// PredictRequest is shared by both predict endpoints. Simulations only applies to the fresh one.
type PredictRequest struct {
	Symbol      string `query:"symbol" json:"symbol" validate:"required,ticker"`
	Period      string `query:"period" json:"period" default:"2y" validate:"oneof=6mo 1y 2y 5y max"`
	FutureDays  int    `query:"future_days" json:"future_days" default:"30" validate:"gte=1,lte=90"`
	Simulations int    `query:"simulations" json:"simulations" default:"5" validate:"gte=1,lte=10"`
}

type TrainModelsRequest struct {
	Period string `query:"period" json:"period" default:"1y" validate:"oneof=1y 2y 5y"`
	Epochs int    `query:"epochs" json:"epochs" default:"10" validate:"gte=1,lte=200"`
	Market string `query:"market" json:"market" validate:"omitempty,max=32"`
}

type TrainSymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,ticker"`
	Period string `query:"period" json:"period" default:"2y" validate:"oneof=6mo 1y 2y 5y max"`
	Epochs int    `query:"epochs" json:"epochs" default:"10" validate:"gte=1,lte=200"`
}

type FeaturesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,ticker"`
	Period string `query:"period" json:"period" default:"6mo" validate:"oneof=6mo 1y 2y 5y max"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}
