package icp_test

import (
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/leadforge/outreach-orchestrator/pkg/icp"
)

var _ = Describe("Loader", func() {
	var (
		logger *logrus.Logger
		dir    string
	)

	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
		dir = GinkgoT().TempDir()
	})

	It("loads the required documents and joins the guides in order", func() {
		write("GTM.md", "We sell to platform teams.")
		write("agent_instruction.md", "Write short emails.")
		write("guides/tone.md", "Be direct.")
		write("guides/structure.md", "Three paragraphs max.")
		write("guides/notes.txt", "ignored")

		loader, err := icp.NewLoader(dir, logger)
		Expect(err).NotTo(HaveOccurred())

		ctx, err := loader.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.GTM).To(Equal("We sell to platform teams."))
		Expect(ctx.Instruction).To(Equal("Write short emails."))

		// Sorted by filename: structure before tone.
		Expect(ctx.Guides).To(Equal("# structure\n\nThree paragraphs max.\n\n---\n\n# tone\n\nBe direct."))
	})

	It("tolerates a missing guides directory", func() {
		write("GTM.md", "gtm")
		write("agent_instruction.md", "instr")

		loader, err := icp.NewLoader(dir, logger)
		Expect(err).NotTo(HaveOccurred())

		ctx, err := loader.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.Guides).To(BeEmpty())
	})

	It("fails when GTM.md is missing", func() {
		write("agent_instruction.md", "instr")

		loader, err := icp.NewLoader(dir, logger)
		Expect(err).NotTo(HaveOccurred())

		_, err = loader.Load()
		Expect(err).To(MatchError(ContainSubstring("GTM.md")))
	})

	It("fails when agent_instruction.md is missing", func() {
		write("GTM.md", "gtm")

		loader, err := icp.NewLoader(dir, logger)
		Expect(err).NotTo(HaveOccurred())

		_, err = loader.Load()
		Expect(err).To(MatchError(ContainSubstring("agent_instruction.md")))
	})

	It("renders all three sections in the prompt block", func() {
		ctx := &icp.Context{GTM: "G", Instruction: "I", Guides: "W"}
		formatted := ctx.Format()
		Expect(formatted).To(ContainSubstring("## Go-To-Market Strategy\nG"))
		Expect(formatted).To(ContainSubstring("## Writing Guides\nW"))
		Expect(formatted).To(ContainSubstring("## Task Instructions\nI"))
	})
})
