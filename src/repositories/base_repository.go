package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/infra/postgres"

	"github.com/jackc/pgx/v5"
)

// Nomes fixos usados pelo proxy para as operações de escrita.
const (
	MethodCreate = "create"
	MethodUpdate = "update"
	MethodDelete = "delete"
)

// DomainMethod is a repository operation reachable by name through the proxy.
type DomainMethod func(ctx context.Context, args ...any) (any, error)

// Mutator holds the storage side of create/update/delete. Concrete
// repositories implement it; BaseRepository only calls it through the proxy.
type Mutator interface {
	CreateModel(ctx context.Context, model *entities.Model) (*entities.Model, error)
	UpdateModel(ctx context.Context, model *entities.Model) (*entities.Model, error)
	DeleteModel(ctx context.Context, id int64) error
}

type Option func(*BaseRepository)

// WithDomainMethods registers extra operations callable through Call.
func WithDomainMethods(methods map[string]DomainMethod) Option {
	return func(r *BaseRepository) {
		for name, method := range methods {
			r.domainMethods[name] = method
		}
	}
}

// WithTransactionMethods restricts transactions to the listed methods.
func WithTransactionMethods(methods ...string) Option {
	return func(r *BaseRepository) {
		for _, method := range methods {
			r.scope.Add(method)
		}
	}
}

func WithInterceptors(interceptors ...Interceptor) Option {
	return func(r *BaseRepository) {
		r.interceptors = append(r.interceptors, interceptors...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *BaseRepository) {
		r.logger = logger
	}
}

// BaseRepository funnels every write and every registered domain method
// through Proxy, which owns the transaction boundary and the interceptors.
type BaseRepository struct {
	txBeginner    postgres.TxBeginner
	crud          map[string]DomainMethod
	domainMethods map[string]DomainMethod
	scope         *TransactionScope
	interceptors  []Interceptor
	logger        *slog.Logger
}

func NewBaseRepository(txBeginner postgres.TxBeginner, mutator Mutator, opts ...Option) *BaseRepository {
	r := &BaseRepository{
		txBeginner:    txBeginner,
		domainMethods: make(map[string]DomainMethod),
		scope:         NewTransactionScope(),
		logger:        slog.Default(),
	}

	r.crud = map[string]DomainMethod{
		MethodCreate: func(ctx context.Context, args ...any) (any, error) {
			model, err := ModelArg(MethodCreate, args, 0)
			if err != nil {
				return nil, err
			}
			return mutator.CreateModel(ctx, model)
		},
		MethodUpdate: func(ctx context.Context, args ...any) (any, error) {
			model, err := ModelArg(MethodUpdate, args, 0)
			if err != nil {
				return nil, err
			}
			return mutator.UpdateModel(ctx, model)
		},
		MethodDelete: func(ctx context.Context, args ...any) (any, error) {
			id, err := IDArg(MethodDelete, args, 0)
			if err != nil {
				return nil, err
			}
			return nil, mutator.DeleteModel(ctx, id)
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *BaseRepository) Create(ctx context.Context, model *entities.Model) (*entities.Model, error) {
	result, err := r.Proxy(ctx, MethodCreate, model)
	if err != nil {
		return nil, err
	}
	return resultModel(result), nil
}

func (r *BaseRepository) Update(ctx context.Context, model *entities.Model) (*entities.Model, error) {
	result, err := r.Proxy(ctx, MethodUpdate, model)
	if err != nil {
		return nil, err
	}
	return resultModel(result), nil
}

func (r *BaseRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.Proxy(ctx, MethodDelete, id)
	return err
}

// Use appends interceptors after the ones given at construction.
func (r *BaseRepository) Use(interceptors ...Interceptor) {
	r.interceptors = append(r.interceptors, interceptors...)
}

// Call dispatches a registered domain method by name.
func (r *BaseRepository) Call(ctx context.Context, name string, args ...any) (any, error) {
	if _, ok := r.domainMethods[name]; !ok {
		return nil, &domain.UnknownMethodError{Method: name}
	}
	return r.Proxy(ctx, name, args...)
}

func (r *BaseRepository) HasMethod(name string) bool {
	_, ok := r.domainMethods[name]
	return ok
}

// DomainMethods lists the registered domain method names, sorted.
func (r *BaseRepository) DomainMethods() []string {
	names := make([]string, 0, len(r.domainMethods))
	for name := range r.domainMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetTransactionMethod limits transactions to the listed methods, adding method.
func (r *BaseRepository) SetTransactionMethod(method string) {
	r.scope.Add(method)
}

// RemoveTransactionMethod unlists method. Once the list is empty every
// method is wrapped again.
func (r *BaseRepository) RemoveTransactionMethod(method string) {
	r.scope.Remove(method)
}

// TransactionMethods returns nil while every method is wrapped.
func (r *BaseRepository) TransactionMethods() []string {
	return r.scope.Methods()
}

func (r *BaseRepository) WrapsTransaction(method string) bool {
	return r.scope.Wraps(method)
}

// Proxy runs method between the interceptors and the transaction boundary:
// BeforeProxy hooks, begin, method, rollback or commit, AfterProxy hooks.
func (r *BaseRepository) Proxy(ctx context.Context, method string, args ...any) (any, error) {
	fn, ok := r.lookup(method)
	if !ok {
		return nil, &domain.UnknownMethodError{Method: method}
	}

	inv := &Invocation{Method: method, Args: args, StartedAt: time.Now()}

	for i, interceptor := range r.interceptors {
		if err := interceptor.BeforeProxy(ctx, inv); err != nil {
			inv.Err = err
			r.runAfterHooks(ctx, inv, i)
			return nil, err
		}
	}

	txCtx, tx, joined, err := r.beforeProxy(ctx, method)
	if err != nil {
		inv.Err = err
		r.runAfterHooks(ctx, inv, len(r.interceptors))
		return nil, err
	}
	inv.Transactional = tx != nil || joined

	var queue *afterHookQueue
	if tx != nil {
		queue = &afterHookQueue{}
		txCtx = context.WithValue(txCtx, afterHookQueueKey{}, queue)
	}

	result, err := r.invoke(txCtx, tx, fn, args)
	err = r.afterProxy(ctx, tx, err)

	inv.Result = result
	inv.Err = err

	// Hooks das chamadas internas só rodam depois do commit ou rollback.
	if queue != nil {
		queue.flush(ctx, err)
	}

	if outer, ok := afterHooksFrom(ctx); ok && joined && err == nil {
		outer.add(r.deferredAfterHooks(inv, len(r.interceptors)))
	} else {
		r.runAfterHooks(ctx, inv, len(r.interceptors))
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

// deferredAfterHooks runs the hooks of a call that joined an outer
// transaction once that transaction is settled. A rolled back outer call
// reaches them as a failed invocation.
func (r *BaseRepository) deferredAfterHooks(inv *Invocation, n int) func(ctx context.Context, outerErr error) {
	return func(ctx context.Context, outerErr error) {
		if outerErr != nil {
			inv.Err = fmt.Errorf("%s rolled back with the outer call: %w", inv.Method, outerErr)
		}
		r.runAfterHooks(ctx, inv, n)
	}
}

func (r *BaseRepository) lookup(method string) (DomainMethod, bool) {
	if fn, ok := r.crud[method]; ok {
		return fn, true
	}
	fn, ok := r.domainMethods[method]
	return fn, ok
}

// beforeProxy opens the transaction when the scope wraps method. A context
// that already carries a transaction is joined, never nested.
func (r *BaseRepository) beforeProxy(ctx context.Context, method string) (context.Context, pgx.Tx, bool, error) {
	if !r.scope.Wraps(method) {
		return ctx, nil, false, nil
	}

	if _, ok := postgres.TxFrom(ctx); ok {
		return ctx, nil, true, nil
	}

	tx, err := r.txBeginner.Begin(ctx)
	if err != nil {
		return ctx, nil, false, fmt.Errorf("BaseRepository.beforeProxy - failed to begin transaction for %s: %w", method, err)
	}

	r.logger.DebugContext(ctx, "Transaction started", "method", method)
	return postgres.WithTx(ctx, tx), tx, false, nil
}

func (r *BaseRepository) invoke(ctx context.Context, tx pgx.Tx, fn DomainMethod, args []any) (any, error) {
	if tx != nil {
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback(context.WithoutCancel(ctx))
				panic(p)
			}
		}()
	}
	return fn(ctx, args...)
}

// afterProxy closes a transaction opened by beforeProxy: rollback when the
// method failed, commit otherwise.
func (r *BaseRepository) afterProxy(ctx context.Context, tx pgx.Tx, err error) error {
	if tx == nil {
		return err
	}

	if err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("BaseRepository.afterProxy - failed to rollback transaction: %w", rbErr))
		}
		r.logger.DebugContext(ctx, "Transaction rolled back", "error", err)
		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("BaseRepository.afterProxy - failed to commit transaction: %w", commitErr)
	}
	return nil
}

// runAfterHooks runs AfterProxy for the first n interceptors, last one first.
func (r *BaseRepository) runAfterHooks(ctx context.Context, inv *Invocation, n int) {
	for i := n - 1; i >= 0; i-- {
		r.interceptors[i].AfterProxy(ctx, inv)
	}
}

type afterHookQueueKey struct{}

// afterHookQueue collects the after hooks of calls that joined the
// transaction opened by the outermost proxied call.
type afterHookQueue struct {
	mu      sync.Mutex
	pending []func(ctx context.Context, outerErr error)
}

func afterHooksFrom(ctx context.Context) (*afterHookQueue, bool) {
	queue, ok := ctx.Value(afterHookQueueKey{}).(*afterHookQueue)
	return queue, ok && queue != nil
}

func (q *afterHookQueue) add(hook func(ctx context.Context, outerErr error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, hook)
}

func (q *afterHookQueue) flush(ctx context.Context, outerErr error) {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, hook := range pending {
		hook(ctx, outerErr)
	}
}

func resultModel(result any) *entities.Model {
	m, _ := result.(*entities.Model)
	return m
}

// ModelArg returns args[i] as a model.
func ModelArg(method string, args []any, i int) (*entities.Model, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%s: missing argument %d: %w", method, i, domain.ErrInvalidArgument)
	}
	m, ok := args[i].(*entities.Model)
	if !ok || m == nil {
		return nil, fmt.Errorf("%s: argument %d is %T, want *entities.Model: %w", method, i, args[i], domain.ErrInvalidArgument)
	}
	return m, nil
}

// IDArg returns args[i] as an entity id.
func IDArg(method string, args []any, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s: missing argument %d: %w", method, i, domain.ErrInvalidArgument)
	}
	id, ok := entities.ToID(args[i])
	if !ok {
		return 0, fmt.Errorf("%s: argument %d is %T, want an id: %w", method, i, args[i], domain.ErrInvalidArgument)
	}
	return id, nil
}

// StringArg returns args[i] as a string.
func StringArg(method string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d: %w", method, i, domain.ErrInvalidArgument)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s: argument %d is %T, want a string: %w", method, i, args[i], domain.ErrInvalidArgument)
	}
	return s, nil
}
