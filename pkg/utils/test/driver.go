package testutils

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/stats"
)

// StatsDriverBehaviors registers the specs every stats.Driver must pass.
// newDriver is called once per test and the driver is closed afterwards.
func StatsDriverBehaviors(newDriver func() stats.Driver) {
	var (
		ctx    context.Context
		driver stats.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	It("seeds the summary once", func() {
		Expect(driver.Seed(ctx, stats.DefaultSeed)).To(Succeed())
		Expect(driver.Seed(ctx, stats.Seed{StartDate: "2030-01-01", InitialVisits: 1})).To(Succeed())

		sum, err := driver.Summary(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.StartDate).To(Equal("2025-10-08"))
		Expect(sum.InitialVisits).To(BeEquivalentTo(520))
		Expect(sum.InitialAPICalls).To(BeEquivalentTo(1231))
		Expect(sum.TotalVisits()).To(BeEquivalentTo(520))
	})

	It("creates a day row on first increment", func() {
		Expect(driver.Seed(ctx, stats.DefaultSeed)).To(Succeed())

		Expect(driver.Increment(ctx, "2025-10-09", stats.Visits)).To(Succeed())
		Expect(driver.Increment(ctx, "2025-10-09", stats.Visits)).To(Succeed())
		Expect(driver.Increment(ctx, "2025-10-09", stats.APICalls)).To(Succeed())
		Expect(driver.Increment(ctx, "2025-10-10", stats.APICalls)).To(Succeed())

		days, err := driver.Days(ctx, "2025-10-01", "2025-10-31")
		Expect(err).NotTo(HaveOccurred())
		Expect(days).To(ConsistOf(
			stats.DailyCounter{Date: "2025-10-09", Visits: 2, APICalls: 1},
			stats.DailyCounter{Date: "2025-10-10", Visits: 0, APICalls: 1},
		))

		sum, err := driver.Summary(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.RunningVisits).To(BeEquivalentTo(2))
		Expect(sum.RunningAPICalls).To(BeEquivalentTo(2))
		Expect(sum.TotalAPICalls()).To(BeEquivalentTo(1233))
	})

	It("limits Days to the requested range", func() {
		Expect(driver.Seed(ctx, stats.DefaultSeed)).To(Succeed())
		for _, day := range []string{"2025-10-01", "2025-10-05", "2025-10-09"} {
			Expect(driver.Increment(ctx, day, stats.Visits)).To(Succeed())
		}

		days, err := driver.Days(ctx, "2025-10-03", "2025-10-08")
		Expect(err).NotTo(HaveOccurred())
		Expect(days).To(HaveLen(1))
		Expect(days[0].Date).To(Equal("2025-10-05"))
	})

	It("rejects unknown metrics", func() {
		Expect(driver.Seed(ctx, stats.DefaultSeed)).To(Succeed())
		Expect(driver.Increment(ctx, "2025-10-09", stats.Metric(9))).To(MatchError(stats.ErrUnknownMetric))
	})

	It("does not lose concurrent increments", func() {
		Expect(driver.Seed(ctx, stats.DefaultSeed)).To(Succeed())

		const n = 50
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(driver.Increment(ctx, "2025-10-09", stats.Visits)).To(Succeed())
			}()
		}
		wg.Wait()

		days, err := driver.Days(ctx, "2025-10-09", "2025-10-09")
		Expect(err).NotTo(HaveOccurred())
		Expect(days).To(HaveLen(1))
		Expect(days[0].Visits).To(BeEquivalentTo(n))
	})
}
