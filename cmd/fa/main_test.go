package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("fa", func() {
	var (
		tempDir  string
		fontsDir string
		cfgPath  string
	)

	execute := func(args ...string) (string, error) {
		a := &app{}
		root := newRootCmd(a)
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(append([]string{"--config", cfgPath}, args...))
		err := root.Execute()
		a.close()
		return out.String(), err
	}

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("font paths come from WINDIR and LOCALAPPDATA")
		}

		var err error
		tempDir, err = os.MkdirTemp("", "fa-cli-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tempDir)
		GinkgoT().Setenv("HOME", filepath.Join(tempDir, "home"))
		GinkgoT().Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "config"))
		GinkgoT().Setenv("FA_STORE_BACKEND", "")
		GinkgoT().Setenv("FA_STORE_PATH", "")

		fontsDir = filepath.Join(tempDir, "fonts")
		Expect(os.MkdirAll(fontsDir, 0755)).To(Succeed())
		for _, name := range []string{"Inter.ttf", "Lora.otf", "notes.txt"} {
			Expect(os.WriteFile(filepath.Join(fontsDir, name), []byte(name), 0644)).To(Succeed())
		}

		cfgPath = filepath.Join(tempDir, "config.yaml")
		Expect(os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
store:
  backend: json
  path: %s
holding_dir: %s
library_dir: %s
notify:
  timeout: 2s
log:
  level: error
`, filepath.Join(tempDir, "state.json"), filepath.Join(tempDir, "holding"), filepath.Join(tempDir, "library"))), 0644)).To(Succeed())
	})

	It("should remember the font folder between runs", func() {
		out, err := execute("folder")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No font folder set"))

		_, err = execute("folder", fontsDir)
		Expect(err).NotTo(HaveOccurred())

		out, err = execute("folder")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(fontsDir))

		out, err = execute("scan")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Inter.ttf"))
		Expect(out).To(ContainSubstring("Lora.otf"))
		Expect(out).NotTo(ContainSubstring("notes.txt"))
		Expect(out).To(ContainSubstring("2 fonts, 0 active"))
	})

	It("should refuse to save a folder that does not exist", func() {
		_, err := execute("folder", filepath.Join(tempDir, "missing"))
		Expect(err).To(MatchError(ContainSubstring("missing")))
	})

	It("should ask for a folder when none is saved", func() {
		_, err := execute("scan")
		Expect(err).To(MatchError(ContainSubstring("none saved")))
	})

	It("should activate and deactivate fonts across runs", func() {
		out, err := execute("activate", "--dir", fontsDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Activated: 2"))

		out, err = execute("activate", filepath.Join(fontsDir, "Inter.ttf"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Skipped (already active): 1"))

		out, err = execute("status")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(filepath.Join(fontsDir, "Inter.ttf")))

		out, err = execute("deactivate", filepath.Join(fontsDir, "Inter.ttf"), filepath.Join(fontsDir, "Lora.otf"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Deactivated: 2"))
		Expect(filepath.Join(tempDir, "holding", "Inter.ttf")).To(BeAnExistingFile())

		out, err = execute("status", filepath.Join(fontsDir, "Inter.ttf"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Inter.ttf: not active"))
	})

	It("should fail activation of a non-font file", func() {
		out, err := execute("activate", filepath.Join(fontsDir, "notes.txt"))
		Expect(err).To(MatchError(ContainSubstring("some fonts failed to activate")))
		Expect(out).To(ContainSubstring("Failed to activate: 1"))
	})

	It("should reject paths together with --dir", func() {
		_, err := execute("activate", "--dir", fontsDir, "extra.ttf")
		Expect(err).To(MatchError(ContainSubstring("no additional arguments")))
	})

	It("should report an empty library", func() {
		out, err := execute("library")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No fonts imported"))
	})

	It("should reject unknown integrations", func() {
		_, err := execute("integrations", "enable", "sketch")
		Expect(err).To(MatchError(ContainSubstring(`unknown integration "sketch"`)))
	})
})
