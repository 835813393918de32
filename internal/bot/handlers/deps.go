package handlers

import (
	"log/slog"

	"github.com/edgard/keywatch/internal/alert"
	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/dispatch"
	"github.com/edgard/keywatch/internal/offer"
	"github.com/edgard/keywatch/internal/suppression"
)

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Engine     *alert.Engine
	Offer      *offer.Handler
	Cache      *suppression.Cache
	Dispatcher *dispatch.Dispatcher
}
