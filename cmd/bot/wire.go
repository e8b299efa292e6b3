//go:build wireinject
// +build wireinject

package main

import (
	"github.com/Jacobbrewer1/plexcord/cmd/bot/config"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/google/wire"
	"github.com/gorilla/mux"
)

func InitializeApp() (*App, error) {
	wire.Build(
		wire.Value(logging.Name(config.AppName)),
		logging.NewConfig,
		logging.CommonLogger,
		config.Parse,
		mux.NewRouter,
		NewApp,
	)
	return new(App), nil
}
