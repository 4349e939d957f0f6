package main

// Build the API Lambda:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"cv-tailor/internal/bootstrap"
	"cv-tailor/internal/shared/config"
	"cv-tailor/internal/shared/server/respond"
	"cv-tailor/internal/shared/telemetry"
)

// adapter is built once per execution environment. A failed build is
// reported on every invocation until the environment is recycled.
var adapter = sync.OnceValues(func() (*ginadapter.GinLambdaV2, error) {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		return nil, err
	}
	return ginadapter.NewV2(app.Router), nil
})

func unavailable() events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{
		Code:    "unavailable",
		Message: "service is starting up, retry shortly",
	}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  "5",
		},
	}
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	proxy, err := adapter()
	if err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{
			"error":      err.Error(),
			"request_id": req.RequestContext.RequestID,
		})
		return unavailable(), nil
	}
	return proxy.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}
