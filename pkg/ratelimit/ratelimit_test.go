package ratelimit_test

import (
	"context"
	"errors"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/leadforge/outreach-orchestrator/pkg/ratelimit"
)

var _ = Describe("Registry", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	})

	It("returns the same bucket for repeated lookups of a provider", func() {
		registry := ratelimit.NewRegistry(logger, map[string]ratelimit.Limit{
			"deepseek": {RequestsPerSecond: 3, Burst: 5},
		})

		first := registry.Limiter("deepseek")
		second := registry.Limiter("deepseek")
		Expect(first).To(BeIdenticalTo(second))
	})

	It("leaves unconfigured providers unthrottled", func() {
		registry := ratelimit.NewRegistry(logger, nil)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		start := time.Now()
		for i := 0; i < 100; i++ {
			Expect(registry.Acquire(ctx, "unknown")).To(Succeed())
		}
		Expect(time.Since(start)).To(BeNumerically("<", 500*time.Millisecond))
	})

	It("enforces the sustained rate floor across sequential acquisitions", func() {
		// 5 acquisitions at 50 req/s with burst 1 cannot finish faster
		// than (5-1)/50 = 80ms.
		registry := ratelimit.NewRegistry(logger, map[string]ratelimit.Limit{
			"slow": {RequestsPerSecond: 50, Burst: 1},
		})

		ctx := context.Background()
		start := time.Now()
		for i := 0; i < 5; i++ {
			Expect(registry.Acquire(ctx, "slow")).To(Succeed())
		}
		Expect(time.Since(start)).To(BeNumerically(">=", 80*time.Millisecond))
	})

	It("aborts the wait when the context is cancelled", func() {
		registry := ratelimit.NewRegistry(logger, map[string]ratelimit.Limit{
			"tight": {RequestsPerSecond: 0.1, Burst: 1},
		})

		ctx := context.Background()
		Expect(registry.Acquire(ctx, "tight")).To(Succeed())

		cancelled, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(registry.Acquire(cancelled, "tight")).NotTo(Succeed())
	})
})

var _ = Describe("IsThrottle", func() {
	It("matches the throttle keywords case-insensitively", func() {
		Expect(ratelimit.IsThrottle(errors.New("HTTP 429 from upstream"))).To(BeTrue())
		Expect(ratelimit.IsThrottle(errors.New("Rate Limit exceeded"))).To(BeTrue())
		Expect(ratelimit.IsThrottle(errors.New("Too Many Requests"))).To(BeTrue())
	})

	It("does not match other errors", func() {
		Expect(ratelimit.IsThrottle(nil)).To(BeFalse())
		Expect(ratelimit.IsThrottle(errors.New("connection refused"))).To(BeFalse())
		Expect(ratelimit.IsThrottle(errors.New("invalid api key"))).To(BeFalse())
	})
})

var _ = Describe("BackoffDelay", func() {
	It("doubles per attempt from the base delay", func() {
		Expect(ratelimit.BackoffDelay(0)).To(Equal(2 * time.Second))
		Expect(ratelimit.BackoffDelay(1)).To(Equal(4 * time.Second))
		Expect(ratelimit.BackoffDelay(2)).To(Equal(8 * time.Second))
	})
})
