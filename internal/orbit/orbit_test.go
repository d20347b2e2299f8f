package orbit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/kicksim/internal/cosmology"
	"github.com/san-kum/kicksim/internal/dynamo"
	"github.com/san-kum/kicksim/internal/galaxy"
)

var cosmo = cosmology.Planck18()

func testHistory() *galaxy.History {
	times := []float64{2, 3, 4, 5, 6}
	redz := make([]float64, len(times))
	pots := make([]galaxy.Potential, len(times))
	for i, t := range times {
		redz[i] = cosmo.Redshift(t)
		grow := 1 + 0.2*float64(i)
		pots[i] = galaxy.Composite{
			galaxy.MiyamotoNagai{M: 3e10 * grow, A: 3, B: 0.3},
			galaxy.NFW{M: 4e11 * grow, Rs: 15},
		}
	}
	h, err := galaxy.NewHistory(times, redz, pots)
	Expect(err).NotTo(HaveOccurred())
	return h
}

func testIntegrator(hist *galaxy.History, mutate func(*Config)) *Integrator {
	cfg := DefaultConfig()
	cfg.Resolution = 400
	if mutate != nil {
		mutate(&cfg)
	}
	in, err := New(hist, cosmo, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	Expect(err).NotTo(HaveOccurred())
	return in
}

func boundInput(hist *galaxy.History, tinsp float64) Input {
	pot, _ := hist.PotentialAt(galaxy.Evolving, 0, 0)
	return Input{
		Index:   7,
		T0:      0,
		Survive: true,
		Tinsp:   tinsp,
		R:       5,
		Vp:      r3.Vec{X: 20, Y: galaxy.Vcirc(pot, 5) + 30, Z: 15},
	}
}

func seeded() *rand.Rand { return rand.New(rand.NewSource(42)) }

var _ = Describe("Integrator", func() {
	var (
		hist *galaxy.History
		ctx  context.Context
	)

	BeforeEach(func() {
		hist = testHistory()
		ctx = context.Background()
	})

	Context("when the system was disrupted by the supernova", func() {
		It("returns NaN everywhere without integrating", func() {
			in := testIntegrator(hist, nil)
			input := boundInput(hist, 1)
			input.Survive = false

			out, err := in.Run(ctx, input, seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.State).To(Equal(Disrupted))
			for _, v := range []float64{out.Final.X, out.Final.Y, out.Final.Z, out.Final.VX, out.Final.VY, out.Final.VZ} {
				Expect(math.IsNaN(v)).To(BeTrue())
			}
			Expect(math.IsNaN(out.ROffset)).To(BeTrue())
			Expect(math.IsNaN(out.RProjOffset)).To(BeTrue())
			Expect(math.IsNaN(out.MergerRedshift)).To(BeTrue())
			Expect(out.Segments).To(BeZero())
			Expect(out.Trajectory).To(BeNil())
		})
	})

	Context("when the inspiral time exceeds the history", func() {
		It("exhausts the epochs with merger redshift exactly 0", func() {
			in := testIntegrator(hist, nil)
			out, err := in.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.State).To(Equal(Exhausted))
			Expect(out.MergerRedshift).To(Equal(0.0))
			Expect(out.Merged).To(BeFalse())
			Expect(out.Segments).To(Equal(4))
			Expect(out.Elapsed).To(BeNumerically("~", hist.Span(), 1e-12))
			Expect(out.ROffset).To(BeNumerically(">", 0))
		})
	})

	Context("when the system merges inside the first epoch", func() {
		It("stops at the inspiral time with a later-time redshift", func() {
			in := testIntegrator(hist, nil)
			out, err := in.Run(ctx, boundInput(hist, 0.5), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.State).To(Equal(Merged))
			Expect(out.Segments).To(Equal(1))
			Expect(out.Elapsed).To(BeNumerically("~", 0.5, 1e-12))
			Expect(out.MergerRedshift).To(BeNumerically("<", hist.Redz[0]))
			Expect(out.MergerRedshift).To(BeNumerically("~", cosmo.Redshift(2.5), 1e-12))
		})

		It("lands partway through a later epoch", func() {
			in := testIntegrator(hist, nil)
			out, err := in.Run(ctx, boundInput(hist, 1.5), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.State).To(Equal(Merged))
			Expect(out.Segments).To(Equal(2))
			Expect(out.Elapsed).To(BeNumerically("~", 1.5, 1e-12))
		})
	})

	Context("when stop_at_merger is disabled", func() {
		It("integrates every epoch and records the first crossing", func() {
			in := testIntegrator(hist, func(c *Config) { c.StopAtMerger = false })
			out, err := in.Run(ctx, boundInput(hist, 0.5), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.State).To(Equal(Exhausted))
			Expect(out.Merged).To(BeTrue())
			Expect(out.Segments).To(Equal(4))
			Expect(out.Elapsed).To(BeNumerically("~", hist.Span(), 1e-12))
			Expect(out.MergerRedshift).To(BeNumerically("~", cosmo.Redshift(2.5), 1e-12))
		})
	})

	Context("when the wall-clock budget runs out", func() {
		It("stops with merger redshift -1", func() {
			in := testIntegrator(hist, func(c *Config) { c.MaxWall = 90 * time.Second })
			now := time.Unix(0, 0)
			in.clock = func() time.Time {
				now = now.Add(time.Minute)
				return now
			}

			out, err := in.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.State).To(Equal(TimedOut))
			Expect(out.MergerRedshift).To(Equal(-1.0))
			Expect(out.Segments).To(Equal(2))
			Expect(out.Elapsed).To(BeNumerically("~", 2, 1e-12))
		})
	})

	Context("offsets and projection", func() {
		It("never projects beyond the true offset", func() {
			in := testIntegrator(hist, nil)
			rng := seeded()
			for i := 0; i < 5; i++ {
				out, err := in.Run(ctx, boundInput(hist, 100), rng, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(out.RProjOffset).To(BeNumerically("<=", out.ROffset+1e-9))
				Expect(out.ROffset).To(BeNumerically("~", math.Sqrt(out.Final.X*out.Final.X+out.Final.Y*out.Final.Y+out.Final.Z*out.Final.Z), 1e-9))
			}
		})

		It("is reproducible for a fixed seed", func() {
			in := testIntegrator(hist, nil)
			a, err := in.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			b, err := in.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Final).To(Equal(a.Final))
			Expect(b.RProjOffset).To(Equal(a.RProjOffset))
		})
	})

	Context("in natural units", func() {
		It("agrees with the physical-unit integration", func() {
			phys := testIntegrator(hist, nil)
			nat := testIntegrator(hist, func(c *Config) { c.Natural = true })

			a, err := phys.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			b, err := nat.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(b.Final.X).To(BeNumerically("~", a.Final.X, 1e-6))
			Expect(b.Final.Y).To(BeNumerically("~", a.Final.Y, 1e-6))
			Expect(b.Final.Z).To(BeNumerically("~", a.Final.Z, 1e-6))
			Expect(b.Final.VY).To(BeNumerically("~", a.Final.VY, 1e-5))
			Expect(b.ROffset).To(BeNumerically("~", a.ROffset, 1e-6))
		})
	})

	Context("potential modes", func() {
		It("runs against the cumulative and fixed potentials", func() {
			for _, mutate := range []func(*Config){
				func(c *Config) { c.Mode = galaxy.Cumulative },
				func(c *Config) { c.Mode = galaxy.Fixed; c.FixedEpoch = 2 },
			} {
				out, err := testIntegrator(hist, mutate).Run(ctx, boundInput(hist, 100), seeded(), nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(out.State).To(Equal(Exhausted))
			}
		})

		It("rejects a fixed epoch outside the history", func() {
			cfg := DefaultConfig()
			cfg.Mode = galaxy.Fixed
			cfg.FixedEpoch = 9
			_, err := New(hist, cosmo, cfg, nil)
			Expect(errors.Is(err, ErrConfig)).To(BeTrue())
		})
	})

	Context("trajectory recording", func() {
		It("records every sub-step with absolute times", func() {
			in := testIntegrator(hist, func(c *Config) { c.Trajectory = true; c.Resolution = 50 })
			out, err := in.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Trajectory).NotTo(BeNil())

			rows := out.Trajectory.Rows
			Expect(rows).To(HaveLen(4 * 50))
			Expect(rows[0].Time).To(BeNumerically("~", 2, 1e-12))
			Expect(rows[len(rows)-1].Time).To(BeNumerically("~", 6, 1e-12))
			for i := 1; i < len(rows); i++ {
				Expect(rows[i].Time).To(BeNumerically(">=", rows[i-1].Time))
			}
			Expect(rows[len(rows)-1].Phase).To(Equal(out.Final))
		})

		It("keeps every Nth row across segments", func() {
			in := testIntegrator(hist, func(c *Config) { c.Trajectory = true; c.Resolution = 50; c.Downsample = 3 })
			out, err := in.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Trajectory.Rows).To(HaveLen(67))
		})

		It("writes to an external sink instead of the outcome", func() {
			sink := &Trajectory{}
			in := testIntegrator(hist, func(c *Config) { c.Trajectory = true; c.Resolution = 20 })
			out, err := in.Run(ctx, boundInput(hist, 0.5), seeded(), sink)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Trajectory).To(BeNil())
			Expect(sink.Rows).To(HaveLen(20))
			Expect(sink.Rows[19].Time).To(BeNumerically("~", 2.5, 1e-12))
		})

		It("does not change the projection draws", func() {
			plain := testIntegrator(hist, nil)
			rec := testIntegrator(hist, func(c *Config) { c.Trajectory = true })
			a, _ := plain.Run(ctx, boundInput(hist, 100), seeded(), nil)
			b, _ := rec.Run(ctx, boundInput(hist, 100), seeded(), nil)
			Expect(b.RProjOffset).To(Equal(a.RProjOffset))
		})
	})

	Context("failures", func() {
		It("reports a numerical failure as an IntegrationError", func() {
			in := testIntegrator(hist, nil)
			input := boundInput(hist, 100)
			input.R = 0
			input.Vp = r3.Vec{}

			_, err := in.Run(ctx, input, seeded(), nil)
			var ie *IntegrationError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Index).To(Equal(7))
			Expect(ie.Epoch).To(Equal(0))
			Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())
		})

		It("rejects a birth epoch outside the history", func() {
			in := testIntegrator(hist, nil)
			input := boundInput(hist, 100)
			input.T0 = 12
			_, err := in.Run(ctx, input, seeded(), nil)
			Expect(errors.Is(err, ErrEpochRange)).To(BeTrue())
		})

		It("stops between segments when cancelled", func() {
			in := testIntegrator(hist, nil)
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := in.Run(cctx, boundInput(hist, 100), seeded(), nil)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	It("treats a system born at the final epoch as exhausted", func() {
		in := testIntegrator(hist, nil)
		input := boundInput(hist, 100)
		input.T0 = hist.Len() - 1
		out, err := in.Run(ctx, input, seeded(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(Exhausted))
		Expect(out.Segments).To(BeZero())
		Expect(out.ROffset).To(BeNumerically("~", 5, 1e-12))
	})
})
