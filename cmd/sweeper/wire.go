//go:build wireinject
// +build wireinject

package main

import (
	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/data"
	"github.com/kamayakoi/lomi.-sub008/internal/provider"

	"github.com/google/wire"
)

// wireApp init the sweeper application.
func wireApp(*conf.Bootstrap) (*SweeperApp, func(), error) {
	panic(wire.Build(
		newLogger,
		data.ProviderSet,
		provider.ProviderSet,
		biz.ProviderSet,
		wire.Struct(new(SweeperApp), "*"),
	))
}
