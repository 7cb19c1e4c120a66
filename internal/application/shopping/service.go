package shopping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/customer"
	domoutbox "github.com/Zhima-Mochi/minishop-shopping/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	domain "github.com/Zhima-Mochi/minishop-shopping/internal/domain/shopping"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	shoppingService     = "shopping-service"
	useCaseGetCart      = "shopping.get_cart"
	useCaseListProducts = "shopping.list_products"
	useCaseGetProduct   = "shopping.get_product"
	useCaseBuy          = "shopping.buy"
	spanPrefix          = "UC."
	storePeer           = "product_store"
	publishPeer         = "outbox"
	publishTimeout      = 300 * time.Millisecond
)

// ErrSaveRejected is the cause attached to a buy failure when the store declined a write.
var ErrSaveRejected = errors.New("shopping: store rejected save")

// Service is the only writer of inventory state. It hands out carts, reads the
// catalog and settles carts against the store.
type Service struct {
	dao       product.Dao
	publisher domoutbox.Publisher
	atomic    bool
	locks     *productLocks

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

type Option func(*Service)

// WithPublisher emits purchase events to p after every buy that reaches the store.
func WithPublisher(p domoutbox.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithAtomicCheck makes Buy validate every line against the store before saving any.
func WithAtomicCheck() Option {
	return func(s *Service) { s.atomic = true }
}

func NewService(dao product.Dao, tel observability.Observability, opts ...Option) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	metricsProvider := tel.Metrics()

	s := &Service{
		dao:          dao,
		locks:        newProductLocks(),
		log:          tel.Logger().With(observability.F("service", shoppingService)),
		tracer:       tel.Tracer(),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCart returns a new, empty cart owned by c.
func (s *Service) GetCart(ctx context.Context, c *customer.Customer) (_ *cart.Cart, err error) {
	ctx, uc := s.begin(ctx, useCaseGetCart, "GetCart")
	defer func() { uc.end(err) }()

	if c == nil {
		uc.fail("error", "CUSTOMER_REQUIRED")
		return nil, domain.InvalidArgument("cannot get cart for nil customer")
	}
	uc.with(observability.F("customer_id", c.ID))
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("customer.id", c.ID))

	return cart.New(c)
}

// GetAllProducts returns the store's catalog as is.
func (s *Service) GetAllProducts(ctx context.Context) (_ []product.Product, err error) {
	ctx, uc := s.begin(ctx, useCaseListProducts, "GetAllProducts")
	defer func() { uc.end(err) }()

	start := time.Now()
	products, err := s.dao.ListAll(ctx)
	s.external(storePeer, "list_all", start, err)
	if err != nil {
		uc.fail("error", "STORE_LIST_FAILED")
		return nil, fmt.Errorf("shopping: list products: %w", err)
	}
	uc.with(observability.F("products", len(products)))
	return products, nil
}

// GetProductByName returns the stored record for name or a NoProductFound error.
func (s *Service) GetProductByName(ctx context.Context, name string) (_ *product.Product, err error) {
	ctx, uc := s.begin(ctx, useCaseGetProduct, "GetProductByName",
		attribute.String("product.name", name),
	)
	uc.with(observability.F("product", name))
	defer func() { uc.end(err) }()

	p, err := s.lookup(ctx, name)
	if err != nil {
		uc.fail("error", "STORE_GET_FAILED")
		return nil, fmt.Errorf("shopping: get product: %w", err)
	}
	if p == nil {
		uc.fail("error", "PRODUCT_NOT_FOUND")
		return nil, domain.NoProductFound(name)
	}
	return p, nil
}

// Buy settles every line of c against the store. A nil or empty cart yields
// false without an error. Lines are processed in cart order and processing
// stops at the first failing line; lines settled before it stay saved and stay
// in the cart. The cart is cleared only when every line settled. A cart with
// lines but no owner is rejected as an invalid argument.
func (s *Service) Buy(ctx context.Context, c *cart.Cart) (_ bool, err error) {
	ctx, uc := s.begin(ctx, useCaseBuy, "Buy")
	defer func() { uc.end(err) }()

	if c == nil {
		uc.fail("rejected", "NO_CART")
		return false, nil
	}
	uc.with(observability.F("lines", c.Len()))
	if c.IsEmpty() {
		uc.fail("rejected", "EMPTY_CART")
		return false, nil
	}
	owner := c.Owner()
	if owner == nil {
		uc.fail("error", "CART_OWNER_REQUIRED")
		return false, domain.InvalidArgument("cannot buy a cart without an owner")
	}
	customerID := owner.ID
	uc.with(observability.F("customer_id", customerID))
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int64("customer.id", customerID),
		attribute.Int("cart.lines", c.Len()),
	)

	lines := c.Lines()
	var settled []domain.SettledLine
	if s.atomic {
		settled, err = s.settleAtomic(ctx, lines)
	} else {
		settled, err = s.settleEach(ctx, lines)
	}
	uc.with(observability.F("settled", len(settled)))

	if err != nil {
		uc.fail("error", "BUY_FAILED")
		name := domain.ProductOf(err)
		uc.with(observability.F("product", name))
		s.publish(ctx, uc, domain.NewPurchaseFailedEvent(customerID, name, failureReason(err), settled))
		return false, err
	}

	c.Clear()
	span.AddEvent("shopping.purchase_completed")
	s.publish(ctx, uc, domain.NewPurchaseCompletedEvent(customerID, settled))
	return true, nil
}

func (s *Service) settleEach(ctx context.Context, lines []cart.Line) ([]domain.SettledLine, error) {
	settled := make([]domain.SettledLine, 0, len(lines))
	for _, l := range lines {
		unlock := s.locks.lock(l.Product.Name)
		sl, err := s.settle(ctx, l)
		unlock()
		if err != nil {
			return settled, err
		}
		settled = append(settled, sl)
	}
	return settled, nil
}

func (s *Service) settleAtomic(ctx context.Context, lines []cart.Line) ([]domain.SettledLine, error) {
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Product.Name
	}
	unlock := s.locks.lock(names...)
	defer unlock()

	for _, l := range lines {
		if _, err := s.current(ctx, l); err != nil {
			return nil, err
		}
	}

	settled := make([]domain.SettledLine, 0, len(lines))
	for _, l := range lines {
		sl, err := s.settle(ctx, l)
		if err != nil {
			return settled, err
		}
		settled = append(settled, sl)
	}
	return settled, nil
}

// current fetches the live record for the line's product and checks it covers the request.
func (s *Service) current(ctx context.Context, l cart.Line) (product.Product, error) {
	name := l.Product.Name
	p, err := s.lookup(ctx, name)
	if err != nil {
		return product.Product{}, domain.BuyFailure(name, err)
	}
	if p == nil {
		return product.Product{}, domain.BuyFailure(name, domain.NoProductFound(name))
	}
	if !p.Covers(l.Quantity) {
		return product.Product{}, domain.InsufficientStock(name)
	}
	return *p, nil
}

// settle decrements the live stock for one line and saves it. The caller holds the product lock.
func (s *Service) settle(ctx context.Context, l cart.Line) (domain.SettledLine, error) {
	name := l.Product.Name
	p, err := s.current(ctx, l)
	if err != nil {
		return domain.SettledLine{}, err
	}

	updated, err := p.Deduct(l.Quantity)
	if err != nil {
		return domain.SettledLine{}, domain.InsufficientStock(name)
	}

	start := time.Now()
	ok, err := s.dao.Save(ctx, updated)
	s.external(storePeer, "save", start, err)
	if err != nil {
		return domain.SettledLine{}, domain.BuyFailure(name, err)
	}
	if !ok {
		return domain.SettledLine{}, domain.BuyFailure(name, ErrSaveRejected)
	}

	return domain.SettledLine{
		Product:   name,
		Quantity:  l.Quantity,
		Remaining: updated.Quantity,
	}, nil
}

func (s *Service) lookup(ctx context.Context, name string) (*product.Product, error) {
	start := time.Now()
	p, err := s.dao.GetByName(ctx, name)
	s.external(storePeer, "get_by_name", start, err)
	return p, err
}

// publish emits e on a best-effort basis; the buy result never depends on it.
func (s *Service) publish(ctx context.Context, uc *call, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := s.publisher.Publish(pubCtx, e)
	if err == nil && pubCtx.Err() != nil {
		err = pubCtx.Err()
	}
	cancel()

	s.external(publishPeer, e.EventName(), start, err)
	if err != nil {
		uc.with(observability.F("event_publish_error", err.Error()))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoProductFound):
		return domain.FailureReasonNotFound
	case errors.Is(err, ErrSaveRejected):
		return domain.FailureReasonPersistenceError
	case errors.Unwrap(err) != nil:
		return domain.FailureReasonPersistenceError
	default:
		return domain.FailureReasonInsufficientStock
	}
}
