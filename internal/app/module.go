package app

import (
	"time"

	"github.com/heyarsen/Content-Factory-sub005/internal/app/api/server"
	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/history"
	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/ledger"
	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/reconcile"
	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/subscription"
	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/topup"
	"github.com/heyarsen/Content-Factory-sub005/internal/platform/db"
	"github.com/heyarsen/Content-Factory-sub005/internal/platform/wayforpay"
	"github.com/heyarsen/Content-Factory-sub005/pkg/config"
	"github.com/heyarsen/Content-Factory-sub005/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	wayforpay.Module,
	server.Module,
	ledger.Module,
	subscription.Module,
	topup.Module,
	history.Module,
	reconcile.Module,
)
