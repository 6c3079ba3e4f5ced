package versioncmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/papercomputeco/chatrelay/cmd/version"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

var _ = Describe("Version command", func() {
	run := func(args ...string) string {
		var out bytes.Buffer
		cmd := versioncmder.NewVersionCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		Expect(cmd.Execute()).To(Succeed())
		return out.String()
	}

	It("prints version, sha and build time", func() {
		Expect(run()).To(Equal("Version: " + utils.Version + "\nSha: " + utils.Sha + "\nBuilt at: " + utils.Buildtime + "\n"))
	})

	It("prints only the version with --short", func() {
		Expect(run("--short")).To(Equal(utils.Version + "\n"))
	})
})
