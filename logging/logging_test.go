package logging_test

import (
	"bytes"
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvemu/logging"
)

var _ = Describe("Logging", func() {
	DescribeTable("ParseLevel",
		func(name string, want slog.Level) {
			lvl, err := logging.ParseLevel(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(lvl).To(Equal(want))
		},
		Entry("trace", "trace", logging.LevelTrace),
		Entry("upper case", "DEBUG", logging.LevelDebug),
		Entry("empty defaults to info", "", logging.LevelInfo),
		Entry("warning alias", "warning", logging.LevelWarn),
		Entry("error", "Error", logging.LevelError),
	)

	It("should reject an unknown level", func() {
		_, err := logging.ParseLevel("loud")
		Expect(err).To(MatchError(ContainSubstring("invalid level")))
	})

	It("should render the trace level by name", func() {
		var buf bytes.Buffer
		logger := logging.New(&buf, logging.LevelTrace)
		logging.Trace(logger, "step", "pc", "0x1000")

		Expect(buf.String()).To(ContainSubstring("level=TRACE"))
		Expect(buf.String()).To(ContainSubstring("pc=0x1000"))
	})

	It("should filter records below the level", func() {
		var buf bytes.Buffer
		logger := logging.New(&buf, logging.LevelInfo)
		logger.Debug("hidden")
		logging.Trace(logger, "hidden too")
		logger.Info("shown")

		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring("shown"))
	})

	It("should tag records with the module", func() {
		var buf bytes.Buffer
		logging.Module(logging.New(&buf, logging.LevelInfo), logging.ModuleEmu).Info("loaded")
		Expect(buf.String()).To(ContainSubstring("module=emu"))
	})

	It("should discard everything", func() {
		logger := logging.Discard()
		Expect(logger.Enabled(context.Background(), logging.LevelError)).To(BeFalse())
		logger.Error("nothing")
	})
})
