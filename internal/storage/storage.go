package storage

import "lprevert/internal/model"

// TradeSink persists a run's trade log.
type TradeSink interface {
	PutTradeBatch(trades []model.TradeRecord) error
}
