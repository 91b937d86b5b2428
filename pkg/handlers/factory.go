package handlers

import (
	"sync"

	"github.com/d4l-data4life/go-svc/pkg/instrumented"

	"github.com/finora-labs/chat-sync/pkg/config"
)

var once sync.Once

var instance *instrumented.HandlerFactory

// GetHandlerFactory returns a global singleton InstrumentedHandlerFactory object
func GetHandlerFactory() *instrumented.HandlerFactory {
	once.Do(func() {
		instance = instrumented.NewHandlerFactory("finora", config.DefaultInstrumentInitOptions, config.DefaultInstrumentOptions)
	})
	return instance
}
