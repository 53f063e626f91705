package redis_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"

	"modelrepo/src/helper/env"
	"modelrepo/src/infra/redis"
)

var _ = Describe("RedisClient", Label("integration"), func() {
	var (
		ctx    context.Context
		client *redis.RedisClient
	)

	BeforeEach(func() {
		if !env.IsSet("TEST_REDIS_HOSTS") {
			Skip("TEST_REDIS_HOSTS not configured")
		}

		ctx = context.Background()
		universal := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs: strings.Split(env.MustGetString("TEST_REDIS_HOSTS"), ","),
		})
		client = redis.NewRedisClientFrom(universal, time.Minute).WithPrefix("test:")

		Expect(client.HealthCheck(ctx)).To(Succeed())
		Expect(client.FlushByPrefix(ctx)).To(Succeed())
	})

	AfterEach(func() {
		if client != nil {
			Expect(client.FlushByPrefix(ctx)).To(Succeed())
			Expect(client.Close()).To(Succeed())
		}
	})

	It("reports a miss for an absent key", func() {
		// ACT
		value, found, err := client.GetKey(ctx, "entity:product:missing")

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
		Expect(value).To(BeEmpty())
	})

	It("stores and reads back a value without registries", func() {
		// ARRANGE
		Expect(client.SetWithRegistry(ctx, "entity:product:abc", `[{"id":1}]`, nil)).To(Succeed())

		// ACT
		value, found, err := client.GetKey(ctx, "entity:product:abc")

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(value).To(Equal(`[{"id":1}]`))
	})

	It("invalidates every key registered for an entity", func() {
		// ARRANGE
		Expect(client.SetWithRegistry(ctx, "entity:product:q1", "one", []string{"registry:entity:product:1"})).To(Succeed())
		Expect(client.SetWithRegistry(ctx, "entity:product:q2", "two", []string{"registry:entity:product:1", "registry:entity:product:2"})).To(Succeed())

		members, err := client.GetMultipleSetMembers(ctx, []string{"registry:entity:product:1", "registry:entity:product:3"})
		Expect(err).NotTo(HaveOccurred())
		Expect(members["registry:entity:product:1"]).To(ConsistOf("entity:product:q1", "entity:product:q2"))
		Expect(members["registry:entity:product:3"]).To(BeEmpty())

		// ACT
		err = client.InvalidateEntity(ctx, members["registry:entity:product:1"])

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		_, found, err := client.GetKey(ctx, "entity:product:q1")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
		_, found, err = client.GetKey(ctx, "entity:product:q2")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("refuses to flush without a prefix", func() {
		// ARRANGE
		unprefixed := redis.NewRedisClientFrom(goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs: strings.Split(env.MustGetString("TEST_REDIS_HOSTS"), ","),
		}), time.Minute)
		DeferCleanup(unprefixed.Close)

		// ACT
		err := unprefixed.FlushByPrefix(ctx)

		// ASSERT
		Expect(err).To(MatchError(ContainSubstring("without a prefix")))
	})
})
