package store

import (
	"time"

	"go.uber.org/zap"
)

// ThunkFunc is an action that runs with access to the store.
type ThunkFunc func(dispatch Dispatch, getState func() map[string]any) (any, error)

// Thunk lets ThunkFunc values be dispatched. Other actions pass through.
func Thunk() Middleware {
	return func(api API) func(next Dispatch) Dispatch {
		return func(next Dispatch) Dispatch {
			return func(action any) (any, error) {
				if thunk, ok := action.(ThunkFunc); ok {
					return thunk(api.Dispatch, api.GetState)
				}
				if thunk, ok := action.(func(Dispatch, func() map[string]any) (any, error)); ok {
					return thunk(api.Dispatch, api.GetState)
				}
				return next(action)
			}
		}
	}
}

// Logger logs every action reaching it at debug level, and failed dispatches
// at warn.
func Logger(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(API) func(next Dispatch) Dispatch {
		return func(next Dispatch) Dispatch {
			return func(action any) (any, error) {
				start := time.Now()
				result, err := next(action)
				fields := []zap.Field{
					zap.String("action", actionType(action)),
					zap.Duration("duration", time.Since(start)),
				}
				if err != nil {
					logger.Warn("dispatch failed", append(fields, zap.Error(err))...)
					return result, err
				}
				logger.Debug("dispatched", fields...)
				return result, nil
			}
		}
	}
}

func actionType(action any) string {
	if typed, ok := asAction(action); ok {
		return typed.Type
	}
	return "<non-action>"
}
