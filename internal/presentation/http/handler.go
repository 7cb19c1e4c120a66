package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	appShopping "github.com/Zhima-Mochi/minishop-shopping/internal/application/shopping"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	domainShopping "github.com/Zhima-Mochi/minishop-shopping/internal/domain/shopping"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	shopping *appShopping.Service
	carts    *cartRegistry
	log      observability.Logger
	tel      observability.Observability

	httpRequests observability.Counter   // http_requests_total{method,route,status}
	httpDuration observability.Histogram // http_request_duration_seconds{method,route,status}
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
)

func NewHandler(shoppingSvc *appShopping.Service, ids IDGenerator, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		shopping:     shoppingSvc,
		carts:        newCartRegistry(ids),
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
		httpRequests: tel.Metrics().Counter(observability.MHTTPRequests),
		httpDuration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → request logger → HTTP metrics → access log → handler
	h.muxHandle(mux, http.MethodGet, "/products", h.handleListProducts)
	h.muxHandle(mux, http.MethodGet, "/products/{name}", h.handleGetProduct)
	h.muxHandle(mux, http.MethodPost, "/carts", h.handleCreateCart)
	h.muxHandle(mux, http.MethodGet, "/carts/{id}", h.handleGetCart)
	h.muxHandle(mux, http.MethodPost, "/carts/{id}/items", h.handleAddItem)
	h.muxHandle(mux, http.MethodPost, "/carts/{id}/buy", h.handleBuy)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			func(r *http.Request) string { return r.Header.Get(headerTenantID) },
		)(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)

	mux.HandleFunc(method+" "+route, func(w http.ResponseWriter, r *http.Request) {
		// Stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), method+" "+route)
		wrapped.ServeHTTP(w, r.WithContext(ctx))
	})
}

type productResponse struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{Name: p.Name, Quantity: p.Quantity}
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.shopping.GetAllProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.shopping.GetProductByName(r.Context(), r.PathValue("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

type customerRequest struct {
	ID    int64  `json:"id"`
	Token string `json:"token"`
}

type createCartRequest struct {
	Customer *customerRequest `json:"customer"`
}

type cartLineResponse struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type cartResponse struct {
	CartID     string             `json:"cart_id"`
	CustomerID int64              `json:"customer_id"`
	Lines      []cartLineResponse `json:"lines"`
}

func toCartResponse(id string, c *cart.Cart) cartResponse {
	lines := c.Lines()
	out := cartResponse{
		CartID:     id,
		CustomerID: c.Owner().ID,
		Lines:      make([]cartLineResponse, 0, len(lines)),
	}
	for _, l := range lines {
		out.Lines = append(out.Lines, cartLineResponse{Product: l.Product.Name, Quantity: l.Quantity})
	}
	return out
}

func (h *Handler) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	var req createCartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var owner *customer.Customer
	if req.Customer != nil {
		owner = customer.New(req.Customer.ID, req.Customer.Token)
	}
	c, err := h.shopping.GetCart(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id := h.carts.put(c)
	writeJSON(w, http.StatusCreated, toCartResponse(id, c))
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var resp cartResponse
	err := h.carts.with(id, func(c *cart.Cart) error {
		resp = toCartResponse(id, c)
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type addItemRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// handleAddItem validates the request against the store's current record of the product.
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := r.PathValue("id")
	var resp cartResponse
	err := h.carts.with(id, func(c *cart.Cart) error {
		p, err := h.shopping.GetProductByName(r.Context(), req.Product)
		if err != nil {
			return err
		}
		if err := c.Add(*p, req.Quantity); err != nil {
			return err
		}
		resp = toCartResponse(id, c)
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type buyResponse struct {
	CartID string `json:"cart_id"`
	Bought bool   `json:"bought"`
}

func (h *Handler) handleBuy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var bought bool
	err := h.carts.with(id, func(c *cart.Cart) error {
		var err error
		bought, err = h.shopping.Buy(r.Context(), c)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if bought {
		// A bought cart is empty; the session ends with the purchase.
		h.carts.drop(id)
	}
	writeJSON(w, http.StatusOK, buyResponse{CartID: id, Bought: bought})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if id := r.PathValue("id"); id != "" {
			r = r.WithContext(logctx.Enrich(r.Context(), h.log, observability.F("cart_id", id)))
		}
		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("minishop.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.httpRequests.Add(1, labels...)
		h.httpDuration.Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps error kinds to status codes. Buy failures are checked
// first because they may wrap a missing product.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainShopping.ErrBuy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domainShopping.ErrNoProductFound),
		errors.Is(err, errCartNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainShopping.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
