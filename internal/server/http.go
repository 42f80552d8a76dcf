package server

import (
	"encoding/json"
	stdhttp "net/http"
	"time"

	"github.com/gaoyong06/go-pkg/health"

	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	coreerrors "github.com/kamayakoi/lomi.-sub008/internal/errors"
	"github.com/kamayakoi/lomi.-sub008/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, svc *service.PaymentService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.Filter(MetricsFilter()),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	if c.Server.Http.Timeout != "" {
		if d, err := time.ParseDuration(c.Server.Http.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)

	r := srv.Route("/v1")
	r.POST("/checkout", svc.HandleCheckout)
	r.POST("/webhooks/{provider}", svc.HandleWebhook)
	r.GET("/transactions/{id}", svc.HandleGetTransaction)

	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, health.NewResponse("payment-orchestrator"))
	})
	srv.Handle("/metrics", promhttp.Handler())

	return srv
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    status,
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["message"] = se.Message
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
	} else if err != nil {
		response["message"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	switch code {
	case coreerrors.ErrCodeSignatureInvalid:
		return stdhttp.StatusUnauthorized
	case coreerrors.ErrCodeTransactionNotFound, coreerrors.ErrCodeCustomerNotFound:
		return stdhttp.StatusNotFound
	case coreerrors.ErrCodeNoFeeConfiguration:
		return stdhttp.StatusUnprocessableEntity
	case coreerrors.ErrCodeProviderUnreachable, coreerrors.ErrCodeProviderRejected:
		return stdhttp.StatusBadGateway
	case coreerrors.ErrCodeInvalidTransition, coreerrors.ErrCodeStaleTransaction, coreerrors.ErrCodeTerminalTransaction:
		return stdhttp.StatusConflict
	}
	if code >= 210000 && code < 220000 {
		return stdhttp.StatusBadRequest
	}
	return stdhttp.StatusInternalServerError
}
