package repositories

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/infra/postgres"
)

// Cache is the part of the redis client used by the cached repository.
type Cache interface {
	GetKey(ctx context.Context, key string) (string, bool, error)
	SetWithRegistry(ctx context.Context, cacheKey string, cacheValue string, registryKeys []string) error
	GetMultipleSetMembers(ctx context.Context, keys []string) (map[string][]string, error)
	InvalidateEntity(ctx context.Context, keys []string) error
}

// CachedEntityRepository serves reads of one entity type from redis and
// falls back to the wrapped Finder on a miss or on any cache error.
type CachedEntityRepository struct {
	finder     Finder
	cache      Cache
	entityType string
	resolver   entities.Resolver
	logger     *slog.Logger
	setTimeout time.Duration
}

func NewCachedEntityRepository(finder Finder, cache Cache, entityType string, logger *slog.Logger) *CachedEntityRepository {
	return &CachedEntityRepository{
		finder:     finder,
		cache:      cache,
		entityType: entityType,
		logger:     logger,
		// Timeout de 30 segundos para operação de cache
		setTimeout: 30 * time.Second,
	}
}

func (r *CachedEntityRepository) EntityType() string {
	return r.entityType
}

func (r *CachedEntityRepository) SetResolver(resolver entities.Resolver) {
	r.resolver = resolver
}

func (r *CachedEntityRepository) Find(ctx context.Context, id int64, opts domain.FetchOptions) (*entities.Model, error) {
	// Dentro de uma transação a leitura pode ver escritas ainda não confirmadas.
	if _, inTx := postgres.TxFrom(ctx); inTx {
		return r.finder.Find(ctx, id, opts)
	}

	cacheKey := r.generateCacheKey(fmt.Sprintf("find:%d:locale:%s:status:%s", id, opts.Locale, opts.Status))

	if models, found := r.getFromCache(ctx, cacheKey, opts); found && len(models) == 1 {
		if err := models.Preload(ctx, opts.Include...); err != nil {
			return nil, fmt.Errorf("CachedEntityRepository.Find - %w", err)
		}
		return models[0], nil
	}

	model, err := r.finder.Find(ctx, id, opts)
	if err != nil {
		return nil, err
	}

	r.setInCacheAsync(cacheKey, entities.Collection{model}, false)
	return model, nil
}

func (r *CachedEntityRepository) FindMany(ctx context.Context, params domain.QueryParams) (entities.Collection, error) {
	if _, inTx := postgres.TxFrom(ctx); inTx {
		return r.finder.FindMany(ctx, params)
	}

	cacheKey, err := r.generateQueryCacheKey(params)
	if err != nil {
		// Parâmetros que não serializam não são cacheados.
		r.logger.WarnContext(ctx, "Skipping cache for query", "entity_type", r.entityType, "error", err)
		return r.finder.FindMany(ctx, params)
	}

	if models, found := r.getFromCache(ctx, cacheKey, params.FetchOptions); found {
		if err := models.Preload(ctx, params.Include...); err != nil {
			return nil, fmt.Errorf("CachedEntityRepository.FindMany - %w", err)
		}
		return models, nil
	}

	models, err := r.finder.FindMany(ctx, params)
	if err != nil {
		return nil, err
	}

	r.setInCacheAsync(cacheKey, models, true)
	return models, nil
}

// InvalidateByEntityIDs drops every cached read that returned one of ids,
// plus every cached list of the type.
func (r *CachedEntityRepository) InvalidateByEntityIDs(ctx context.Context, entityIDs []int64) error {
	registryKeys := make([]string, 0, len(entityIDs)+1)
	registryKeys = append(registryKeys, typeRegistryKey(r.entityType))
	for _, entityID := range entityIDs {
		registryKeys = append(registryKeys, entityRegistryKey(r.entityType, entityID))
	}

	registryResults, err := r.cache.GetMultipleSetMembers(ctx, registryKeys)
	if err != nil {
		return fmt.Errorf("CachedEntityRepository.InvalidateByEntityIDs - failed to get registry data: %w", err)
	}

	allKeysToDelete := make(map[string]bool)
	for registryKey, relatedKeys := range registryResults {
		allKeysToDelete[registryKey] = true
		for _, relatedKey := range relatedKeys {
			allKeysToDelete[relatedKey] = true
		}
	}

	if len(allKeysToDelete) == 0 {
		return nil
	}

	keysToDelete := make([]string, 0, len(allKeysToDelete))
	for key := range allKeysToDelete {
		keysToDelete = append(keysToDelete, key)
	}

	r.logger.DebugContext(ctx, "Invalidating cache keys", "entity_type", r.entityType, "keys", len(keysToDelete), "entities", len(entityIDs))
	return r.cache.InvalidateEntity(ctx, keysToDelete)
}

func (r *CachedEntityRepository) generateQueryCacheKey(params domain.QueryParams) (string, error) {
	// Include não entra na chave: o cache guarda as referências e o preload
	// é refeito a cada leitura.
	keyData, err := json.Marshal(struct {
		Filter domain.Filter `json:"filter"`
		Offset int           `json:"offset"`
		Limit  int           `json:"limit"`
		Sort   []string      `json:"sort"`
		Locale string        `json:"locale"`
		Status string        `json:"status"`
	}{params.Filter, params.Offset, params.Limit, params.Sort, params.Locale, params.Status})
	if err != nil {
		return "", err
	}

	return r.generateCacheKey("query:" + string(keyData)), nil
}

func (r *CachedEntityRepository) generateCacheKey(keyData string) string {
	hash := md5.Sum([]byte(keyData))
	return fmt.Sprintf("entity:%s:%x", r.entityType, hash)
}

func (r *CachedEntityRepository) getFromCache(ctx context.Context, cacheKey string, opts domain.FetchOptions) (entities.Collection, bool) {
	cachedJSON, found, err := r.cache.GetKey(ctx, cacheKey)
	if err != nil {
		r.logger.WarnContext(ctx, "Cache error", "key", cacheKey, "error", err)
		return nil, false
	}
	if !found {
		r.logger.DebugContext(ctx, "Cache MISS", "key", cacheKey)
		return nil, false
	}

	var records []map[string]any
	if err := json.Unmarshal([]byte(cachedJSON), &records); err != nil {
		r.logger.WarnContext(ctx, "Failed to unmarshal cached data", "key", cacheKey, "error", err)
		return nil, false
	}

	r.logger.DebugContext(ctx, "Cache HIT", "key", cacheKey)

	options := []entities.ModelOption{entities.WithFetchOptions(opts)}
	if r.resolver != nil {
		options = append(options, entities.WithResolver(r.resolver))
	}
	return entities.NewCollection(records, options...), true
}

func (r *CachedEntityRepository) setInCacheAsync(cacheKey string, models entities.Collection, isList bool) {
	records := make([]map[string]any, len(models))
	for i, model := range models {
		records[i] = model.Fields()
	}
	ids := models.IDs()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.setTimeout)
		defer cancel()

		r.setInCache(ctx, cacheKey, records, ids, isList)
	}()
}

func (r *CachedEntityRepository) setInCache(ctx context.Context, cacheKey string, records []map[string]any, ids []int64, isList bool) {
	dataJSON, err := json.Marshal(records)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to marshal cache data", "key", cacheKey, "error", err)
		return
	}

	registryKeys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		registryKeys = append(registryKeys, entityRegistryKey(r.entityType, id))
	}
	// Listas dependem também de entidades que ainda não existem.
	if isList {
		registryKeys = append(registryKeys, typeRegistryKey(r.entityType))
	}

	if err := r.cache.SetWithRegistry(ctx, cacheKey, string(dataJSON), registryKeys); err != nil {
		r.logger.WarnContext(ctx, "Failed to set cache with registry", "key", cacheKey, "error", err)
		return
	}

	r.logger.DebugContext(ctx, "Cache SET with registry", "key", cacheKey, "entities", len(ids))
}

func entityRegistryKey(entityType string, id int64) string {
	return fmt.Sprintf("registry:entity:%s:%d", entityType, id)
}

func typeRegistryKey(entityType string) string {
	return fmt.Sprintf("registry:type:%s", entityType)
}

// CacheInvalidationInterceptor drops the cached reads of the entity a
// successful proxied call touched.
type CacheInvalidationInterceptor struct {
	cache  *CachedEntityRepository
	logger *slog.Logger
}

func NewCacheInvalidationInterceptor(cache *CachedEntityRepository, logger *slog.Logger) *CacheInvalidationInterceptor {
	return &CacheInvalidationInterceptor{cache: cache, logger: logger}
}

func (c *CacheInvalidationInterceptor) BeforeProxy(ctx context.Context, inv *Invocation) error {
	return nil
}

func (c *CacheInvalidationInterceptor) AfterProxy(ctx context.Context, inv *Invocation) {
	if inv.Err != nil {
		return
	}

	var ids []int64
	if id, ok := inv.AffectedID(); ok {
		ids = append(ids, id)
	}

	// A escrita já foi confirmada; o cancelamento do chamador não pode deixar cache velho.
	if err := c.cache.InvalidateByEntityIDs(context.WithoutCancel(ctx), ids); err != nil {
		c.logger.ErrorContext(ctx, "Failed to invalidate cache", "method", inv.Method, "ids", ids, "error", err)
	}
}
