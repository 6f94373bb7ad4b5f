package logging_test

import (
	"github.com/logandonley/font-activator/internal/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"
)

var _ = Describe("Logging", func() {
	DescribeTable("ParseLevel",
		func(name string, want zapcore.Level) {
			got, err := logging.ParseLevel(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("default", "", zapcore.InfoLevel),
		Entry("debug", "debug", zapcore.DebugLevel),
		Entry("warn", "warn", zapcore.WarnLevel),
		Entry("error", "error", zapcore.ErrorLevel),
	)

	It("should reject unknown levels", func() {
		_, err := logging.New("loud", false)
		Expect(err).To(MatchError(ContainSubstring(`invalid log level "loud"`)))
	})

	It("should enable the configured level", func() {
		logger, err := logging.New("warn", false)
		Expect(err).NotTo(HaveOccurred())
		Expect(logger.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
		Expect(logger.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
	})

	It("should build a development logger", func() {
		logger, err := logging.New("debug", true)
		Expect(err).NotTo(HaveOccurred())
		Expect(logger.Core().Enabled(zapcore.DebugLevel)).To(BeTrue())
	})
})
