package server

import (
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kriterionquant/chainscope/api"
	"github.com/kriterionquant/chainscope/internal/analytics"
	"github.com/kriterionquant/chainscope/internal/config"
	"github.com/kriterionquant/chainscope/internal/notify"
	"github.com/kriterionquant/chainscope/internal/ws"
)

// Server wires the snapshot store and analytics parameters behind the
// HTTP handlers.
type Server struct {
	store    *SnapshotStore
	params   analytics.Params
	config   *config.ServerConfig
	hub      *ws.Hub
	notifier notify.Notifier
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func NewServer(store *SnapshotStore, params analytics.Params, cfg *config.ServerConfig, hub *ws.Hub, notifier notify.Notifier, logger *zap.Logger) *Server {
	if notifier == nil {
		notifier = &notify.NoopNotifier{}
	}
	perSecond := rate.Limit(float64(cfg.UploadRatePerMinute) / 60)
	return &Server{
		store:    store,
		params:   params,
		config:   cfg,
		hub:      hub,
		notifier: notifier,
		limiter:  rate.NewLimiter(perSecond, cfg.UploadBurst),
		logger:   logger,
	}
}

func NewRouter(server *Server, logger *zap.Logger) (http.Handler, error) {
	// Load OpenAPI spec for request validation
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(api.OpenAPISpec)
	if err != nil {
		return nil, err
	}
	if err := swagger.Validate(loader.Context); err != nil {
		return nil, err
	}
	swagger.Servers = nil // Allow any host

	// The validator has no built-in decoder for CSV uploads.
	openapi3filter.RegisterBodyDecoder("text/csv", csvBodyDecoder)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(logger))

	// Non-validated routes
	r.Get("/healthz", server.handleHealth)
	r.Get("/openapi.yaml", openapiHandler)
	r.Get("/docs", swaggerUIHandler)
	if server.hub != nil {
		r.Get("/ws", server.hub.HandleWS)
	}

	// API routes with OpenAPI validation
	r.Group(func(apiRouter chi.Router) {
		apiRouter.Use(oapimiddleware.OapiRequestValidator(swagger))

		apiRouter.Post("/snapshot", server.handleUploadSnapshot)
		apiRouter.Get("/snapshot", server.handleGetSnapshot)
		apiRouter.Get("/expirations", server.handleListExpirations)
		apiRouter.Get("/expirations/{date}/gex", server.handleGex)
		apiRouter.Get("/expirations/{date}/positioning", server.handlePositioning)
		apiRouter.Get("/expirations/{date}/maxpain", server.handleMaxPain)
		apiRouter.Get("/expirations/{date}/expectedmove", server.handleExpectedMove)
		apiRouter.Get("/surface", server.handleSurface)
	})

	return r, nil
}

func csvBodyDecoder(body io.Reader, _ http.Header, _ *openapi3.SchemaRef, _ openapi3filter.EncodingFn) (any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}

func openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(api.OpenAPISpec)
}

func swaggerUIHandler(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Chainscope API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.10.3/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.3/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "/openapi.yaml",
                dom_id: '#swagger-ui',
            });
        };
    </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}
