package fm_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logandonley/font-activator/internal/platform"
	"github.com/logandonley/font-activator/internal/registry"
	"github.com/logandonley/font-activator/internal/store"
	"github.com/logandonley/font-activator/pkg/fm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// Mock platform implementation for testing
type mockPlatform struct {
	fontDir       string
	consultSystem bool
	notifier      *mockNotifier
}

func (m *mockPlatform) Name() string {
	return "mock"
}

func (m *mockPlatform) FontPaths() (platform.FontPaths, error) {
	paths := platform.FontPaths{
		SystemDir: filepath.Join(m.fontDir, "system"),
		UserDir:   filepath.Join(m.fontDir, "user"),
	}
	paths.Consult = []string{paths.UserDir}
	if m.consultSystem {
		paths.Consult = append(paths.Consult, paths.SystemDir)
	}
	return paths, nil
}

func (m *mockPlatform) Notifier() platform.Notifier {
	return m.notifier
}

// mockNotifier counts notifications and optionally fails, blocks or panics.
type mockNotifier struct {
	activated   atomic.Int32
	deactivated atomic.Int32
	fail        bool
	block       bool
	panics      bool
}

func (n *mockNotifier) NotifyActivated(ctx context.Context, path string) platform.Result {
	n.activated.Add(1)
	return n.result(ctx, platform.OpActivated)
}

func (n *mockNotifier) NotifyDeactivated(ctx context.Context, path string) platform.Result {
	n.deactivated.Add(1)
	return n.result(ctx, platform.OpDeactivated)
}

func (n *mockNotifier) result(ctx context.Context, op string) platform.Result {
	res := platform.Result{Platform: "mock", Op: op, Command: "mock-cache"}
	switch {
	case n.panics:
		panic("notifier exploded")
	case n.block:
		// Ignores ctx on purpose
		time.Sleep(2 * time.Second)
	case n.fail:
		res.Err = &platform.NotificationFailure{Platform: "mock", Command: "mock-cache", Err: errors.New("exit status 1")}
	}
	return res
}

var _ = Describe("Engine", func() {
	var (
		engine   *fm.Engine
		plat     *mockPlatform
		notifier *mockNotifier
		st       *store.Memory
		reg      *registry.Registry
		tempDir  string
		srcDir   string
		userDir  string
		sysDir   string
		holdDir  string
		ctx      context.Context
	)

	writeFont := func(dir, name, content string) string {
		Expect(os.MkdirAll(dir, 0755)).To(Succeed())
		p := filepath.Join(dir, name)
		Expect(os.WriteFile(p, []byte(content), 0644)).To(Succeed())
		return p
	}

	newEngine := func(opts fm.Options) *fm.Engine {
		opts.Platform = plat
		opts.Registry = reg
		opts.Holding = fm.NewHoldingArea(holdDir)
		e, err := fm.NewEngine(opts)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "engine-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tempDir)

		srcDir = filepath.Join(tempDir, "src")
		userDir = filepath.Join(tempDir, "user")
		sysDir = filepath.Join(tempDir, "system")
		holdDir = filepath.Join(tempDir, "holding")
		Expect(os.MkdirAll(srcDir, 0755)).To(Succeed())

		notifier = &mockNotifier{}
		plat = &mockPlatform{fontDir: tempDir, notifier: notifier}
		st = store.NewMemory()
		reg, err = registry.Open(st)
		Expect(err).NotTo(HaveOccurred())

		engine = newEngine(fm.Options{})
		ctx = context.Background()
	})

	It("should require its collaborators", func() {
		_, err := fm.NewEngine(fm.Options{Registry: reg, Holding: fm.NewHoldingArea(holdDir)})
		Expect(err).To(MatchError(ContainSubstring("platform is required")))
	})

	Describe("Activating fonts", func() {
		It("should copy the font into the user directory and record it", func() {
			writeFont(userDir, "Arial.ttf", "arial")
			src := writeFont(srcDir, "Custom.otf", "custom otf")

			outcome, err := engine.Activate(ctx, src)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(fm.Activated))

			dest := filepath.Join(userDir, "Custom.otf")
			Expect(os.ReadFile(dest)).To(Equal([]byte("custom otf")))
			Expect(engine.Records()).To(Equal([]registry.ActivationRecord{
				{OriginalPath: src, ActivePath: dest},
			}))

			active, err := engine.IsActive(ctx, src)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeTrue())
			Expect(notifier.activated.Load()).To(BeEquivalentTo(1))
		})

		It("should leave the source untouched", func() {
			src := writeFont(srcDir, "Custom.otf", "custom otf")
			_, err := engine.Activate(ctx, src)
			Expect(err).NotTo(HaveOccurred())
			Expect(os.ReadFile(src)).To(Equal([]byte("custom otf")))
		})

		It("should be idempotent", func() {
			src := writeFont(srcDir, "Custom.otf", "custom otf")

			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))
			outcome, err := engine.Activate(ctx, src)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(fm.AlreadyActive))

			Expect(engine.Records()).To(HaveLen(1))
			entries, err := os.ReadDir(userDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(notifier.activated.Load()).To(BeEquivalentTo(1))
		})

		It("should treat a font present in the system directory as active when the platform consults it", func() {
			plat.consultSystem = true
			writeFont(sysDir, "Custom.otf", "system copy")
			src := writeFont(srcDir, "Custom.otf", "custom otf")

			Expect(engine.Activate(ctx, src)).To(Equal(fm.AlreadyActive))
			Expect(filepath.Join(userDir, "Custom.otf")).NotTo(BeAnExistingFile())
			Expect(engine.Records()).To(BeEmpty())
		})

		It("should ignore the system directory when the platform does not consult it", func() {
			writeFont(sysDir, "Custom.otf", "system copy")
			src := writeFont(srcDir, "Custom.otf", "custom otf")

			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))
		})

		It("should fail with an ActivationIOError and record nothing when the copy fails", func() {
			outcome, err := engine.Activate(ctx, filepath.Join(srcDir, "Missing.ttf"))
			Expect(outcome).To(Equal(fm.Failed))

			var ioErr *fm.ActivationIOError
			Expect(errors.As(err, &ioErr)).To(BeTrue())
			Expect(ioErr.Op).To(Equal("copy"))
			Expect(engine.Records()).To(BeEmpty())
			Expect(notifier.activated.Load()).To(BeZero())
		})

		It("should fail when the user directory cannot be created", func() {
			// A file where the user directory should be
			Expect(os.WriteFile(userDir, []byte("x"), 0644)).To(Succeed())
			src := writeFont(srcDir, "Custom.otf", "custom otf")

			_, err := engine.Activate(ctx, src)
			var ioErr *fm.ActivationIOError
			Expect(errors.As(err, &ioErr)).To(BeTrue())
			Expect(engine.Records()).To(BeEmpty())
		})

		It("should reject files without a font extension", func() {
			src := writeFont(srcDir, "notes.txt", "hello")
			outcome, err := engine.Activate(ctx, src)
			Expect(outcome).To(Equal(fm.Failed))
			Expect(err).To(MatchError(ContainSubstring("not a font file")))
		})

		It("should activate batches concurrently and report each path", func() {
			var paths []string
			for i := 0; i < 8; i++ {
				paths = append(paths, writeFont(srcDir, fmt.Sprintf("Font%d.ttf", i), "ttf"))
			}
			paths = append(paths, filepath.Join(srcDir, "Missing.ttf"), paths[0])

			results := engine.ActivateAll(ctx, paths)
			Expect(results).To(HaveLen(len(paths)))
			for i, res := range results[:8] {
				Expect(res.Path).To(Equal(paths[i]))
				Expect(res.Err).NotTo(HaveOccurred())
			}
			Expect(results[8].Err).To(HaveOccurred())
			Expect(engine.Records()).To(HaveLen(8))

			// The duplicate serializes against the first activation
			outcomes := []fm.Outcome{results[0].Outcome, results[9].Outcome}
			Expect(outcomes).To(ConsistOf(fm.Activated, fm.AlreadyActive))
		})
	})

	Describe("Deactivating fonts", func() {
		var src string

		BeforeEach(func() {
			src = writeFont(srcDir, "Custom.otf", "custom otf")
			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))
		})

		It("should move the active copy into the holding area", func() {
			outcome, err := engine.Deactivate(ctx, src)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(fm.Deactivated))

			Expect(filepath.Join(userDir, "Custom.otf")).NotTo(BeAnExistingFile())
			Expect(os.ReadFile(filepath.Join(holdDir, "Custom.otf"))).To(Equal([]byte("custom otf")))
			Expect(os.ReadFile(src)).To(Equal([]byte("custom otf")))
			Expect(engine.Records()).To(BeEmpty())

			active, err := engine.IsActive(ctx, src)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeFalse())
			Expect(notifier.deactivated.Load()).To(BeEquivalentTo(1))
		})

		It("should accept the active path", func() {
			activePath := filepath.Join(userDir, "Custom.otf")
			Expect(engine.Deactivate(ctx, activePath)).To(Equal(fm.Deactivated))
			Expect(filepath.Join(holdDir, "Custom.otf")).To(BeAnExistingFile())
			Expect(engine.Records()).To(BeEmpty())
		})

		It("should allow reactivation after deactivation", func() {
			Expect(engine.Deactivate(ctx, src)).To(Equal(fm.Deactivated))
			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))
			Expect(filepath.Join(userDir, "Custom.otf")).To(BeAnExistingFile())
			Expect(engine.Records()).To(HaveLen(1))
		})

		It("should replace an older file with the same name in the holding area", func() {
			writeFont(holdDir, "Custom.otf", "stale")
			Expect(engine.Deactivate(ctx, src)).To(Equal(fm.Deactivated))
			Expect(os.ReadFile(filepath.Join(holdDir, "Custom.otf"))).To(Equal([]byte("custom otf")))

			held, err := engine.Holding().List()
			Expect(err).NotTo(HaveOccurred())
			Expect(held).To(HaveLen(1))
		})

		It("should drop the record when the active file has already gone", func() {
			Expect(os.Remove(filepath.Join(userDir, "Custom.otf"))).To(Succeed())
			Expect(engine.Deactivate(ctx, src)).To(Equal(fm.Deactivated))
			Expect(engine.Records()).To(BeEmpty())
		})

		It("should report fonts it never activated as not active without touching anything", func() {
			manual := writeFont(userDir, "Manual.ttf", "installed by hand")
			before := engine.Records()

			outcome, err := engine.Deactivate(ctx, manual)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(fm.NotActive))
			Expect(manual).To(BeAnExistingFile())
			Expect(filepath.Join(holdDir, "Manual.ttf")).NotTo(BeAnExistingFile())
			Expect(engine.Records()).To(Equal(before))
			Expect(notifier.deactivated.Load()).To(BeZero())
		})

		It("should keep the record when the move fails", func() {
			// A file where the holding directory should be
			Expect(os.WriteFile(holdDir, []byte("x"), 0644)).To(Succeed())

			outcome, err := engine.Deactivate(ctx, src)
			Expect(outcome).To(Equal(fm.Failed))
			var ioErr *fm.ActivationIOError
			Expect(errors.As(err, &ioErr)).To(BeTrue())
			Expect(ioErr.Op).To(Equal("move"))
			Expect(engine.Records()).To(HaveLen(1))
			Expect(filepath.Join(userDir, "Custom.otf")).To(BeAnExistingFile())
		})
	})

	Describe("Relative paths", func() {
		var src string

		BeforeEach(func() {
			realSrc, err := filepath.EvalSymlinks(srcDir)
			Expect(err).NotTo(HaveOccurred())
			src = writeFont(realSrc, "Custom.otf", "custom otf")

			wd, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(realSrc)).To(Succeed())
			DeferCleanup(os.Chdir, wd)
		})

		It("should record the absolute original path", func() {
			Expect(engine.Activate(ctx, "Custom.otf")).To(Equal(fm.Activated))
			Expect(engine.Records()).To(HaveLen(1))
			Expect(engine.Records()[0].OriginalPath).To(Equal(src))
		})

		It("should deactivate by absolute path after a relative activation", func() {
			Expect(engine.Activate(ctx, "Custom.otf")).To(Equal(fm.Activated))

			Expect(engine.Deactivate(ctx, src)).To(Equal(fm.Deactivated))
			Expect(filepath.Join(userDir, "Custom.otf")).NotTo(BeAnExistingFile())
			Expect(engine.Records()).To(BeEmpty())
		})

		It("should deactivate by relative path after an absolute activation", func() {
			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))
			Expect(engine.IsActive(ctx, "./Custom.otf")).To(BeTrue())

			Expect(engine.Deactivate(ctx, "./Custom.otf")).To(Equal(fm.Deactivated))
			Expect(engine.Records()).To(BeEmpty())
		})
	})

	Describe("Notification failures", func() {
		It("should not affect activation or deactivation", func() {
			notifier.fail = true
			src := writeFont(srcDir, "Custom.otf", "custom otf")

			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))
			Expect(engine.IsActive(ctx, src)).To(BeTrue())
			Expect(reg.Records()).To(HaveLen(1))

			Expect(engine.Deactivate(ctx, src)).To(Equal(fm.Deactivated))
			Expect(engine.IsActive(ctx, src)).To(BeFalse())
			Expect(reg.Records()).To(BeEmpty())
		})

		It("should survive a panicking notifier", func() {
			notifier.panics = true
			src := writeFont(srcDir, "Custom.otf", "custom otf")
			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))
		})

		It("should stop waiting for a notifier that ignores its deadline", func() {
			notifier.block = true
			engine = newEngine(fm.Options{NotifyTimeout: 50 * time.Millisecond})
			src := writeFont(srcDir, "Custom.otf", "custom otf")

			start := time.Now()
			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
			Expect(engine.Records()).To(HaveLen(1))
		})
	})

	Describe("Checking activation state", func() {
		It("should be false for a font that is neither present nor recorded", func() {
			src := writeFont(srcDir, "Custom.otf", "custom otf")
			Expect(engine.IsActive(ctx, src)).To(BeFalse())
		})

		It("should be true for a font placed in the user directory by hand", func() {
			writeFont(userDir, "Manual.ttf", "manual")
			Expect(engine.IsActive(ctx, filepath.Join(srcDir, "Manual.ttf"))).To(BeTrue())
		})

		It("should trust the registry even when the file is missing", func() {
			Expect(reg.Upsert(registry.ActivationRecord{
				OriginalPath: "/elsewhere/Lagging.ttf",
				ActivePath:   filepath.Join(userDir, "Lagging.ttf"),
			})).To(Succeed())

			Expect(engine.IsActive(ctx, "/elsewhere/Lagging.ttf")).To(BeTrue())
			Expect(engine.IsActive(ctx, filepath.Join(userDir, "Lagging.ttf"))).To(BeTrue())
			Expect(engine.IsActive(ctx, "/another/copy/Lagging.ttf")).To(BeTrue())
		})
	})

	Describe("Persistence", func() {
		It("should see prior activations after a restart", func() {
			src := writeFont(srcDir, "Custom.otf", "custom otf")
			Expect(engine.Activate(ctx, src)).To(Equal(fm.Activated))

			restarted, err := registry.Open(st)
			Expect(err).NotTo(HaveOccurred())
			e, err := fm.NewEngine(fm.Options{Platform: plat, Registry: restarted, Holding: fm.NewHoldingArea(holdDir)})
			Expect(err).NotTo(HaveOccurred())

			Expect(e.Deactivate(ctx, src)).To(Equal(fm.Deactivated))
		})
	})

	Describe("Listing fonts", func() {
		It("should list system and user fonts with their origin", func() {
			writeFont(sysDir, "Helvetica.ttf", "")
			writeFont(userDir, "Arial.TTF", "")
			writeFont(userDir, "readme.txt", "")

			fonts, err := engine.ListSystemFonts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fonts).To(ConsistOf(
				fm.FontDescriptor{Name: "Helvetica", SourcePath: filepath.Join(sysDir, "Helvetica.ttf"), Extension: fm.ExtTTF, Origin: fm.OriginSystem},
				fm.FontDescriptor{Name: "Arial", SourcePath: filepath.Join(userDir, "Arial.TTF"), Extension: fm.ExtTTF, Origin: fm.OriginUser},
			))
		})

		It("should tolerate missing font directories", func() {
			writeFont(userDir, "Arial.ttf", "")
			fonts, err := engine.ListSystemFonts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fonts).To(HaveLen(1))
			Expect(fonts[0].Origin).To(Equal(fm.OriginUser))
		})

		It("should scan a picked folder", func() {
			writeFont(srcDir, "Custom.otf", "")
			fonts, err := engine.Scan(srcDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(fonts).To(HaveLen(1))
			Expect(fonts[0].Origin).To(Equal(fm.OriginImported))
		})
	})

	Describe("Concurrent operations", func() {
		It("should serialize activate and deactivate on the same font", func() {
			src := writeFont(srcDir, "Custom.otf", "custom otf")

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(2)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := engine.Activate(ctx, src)
					Expect(err).NotTo(HaveOccurred())
				}()
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := engine.Deactivate(ctx, src)
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			// Whatever order won, registry and filesystem agree
			active := filepath.Join(userDir, "Custom.otf")
			if len(engine.Records()) == 1 {
				Expect(active).To(BeAnExistingFile())
			} else {
				Expect(engine.Records()).To(BeEmpty())
				Expect(active).NotTo(BeAnExistingFile())
			}
		})
	})
})
