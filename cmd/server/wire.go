//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/data"
	"github.com/kamayakoi/lomi.-sub008/internal/provider"
	"github.com/kamayakoi/lomi.-sub008/internal/server"
	"github.com/kamayakoi/lomi.-sub008/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, provider.ProviderSet, biz.ProviderSet, service.ProviderSet, newApp))
}
