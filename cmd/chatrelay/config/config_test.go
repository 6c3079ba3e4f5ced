package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chatrelay-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local .chatrelay dir is picked up ahead of the home directory.
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".chatrelay"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			out, err := run("set", "upstream.bot_id", "7504643730922848271")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("upstream.bot_id"))

			_, err = os.Stat(filepath.Join(tmpDir, ".chatrelay", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("masks the upstream token in its output", func() {
			out, err := run("set", "upstream.token", "pat_secret1234")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).NotTo(ContainSubstring("pat_secret1234"))
			Expect(out).To(ContainSubstring("1234"))
		})

		It("rejects unknown keys", func() {
			_, err := run("set", "invalid_key", "value")
			Expect(err).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			_, err := run("set", "upstream.bot_id")
			Expect(err).To(HaveOccurred())
		})

		It("rejects zero arguments", func() {
			_, err := run("set")
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid uint values", func() {
			_, err := run("set", "stats.initial_visits", "not-a-number")
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid durations", func() {
			_, err := run("set", "upstream.timeout", "soon")
			Expect(err).To(HaveOccurred())
		})

		It("rejects unknown storage drivers", func() {
			_, err := run("set", "storage.driver", "mongo")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			_, err := run("set", "upstream.bot_id", "7504643730922848271")
			Expect(err).NotTo(HaveOccurred())

			out, err := run("get", "upstream.bot_id")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("7504643730922848271"))
		})

		It("reports unset keys", func() {
			out, err := run("get", "upstream.bot_id")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("<not set>"))
		})

		It("returns defaults for keys with a default value", func() {
			out, err := run("get", "upstream.base_url")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("https://api.coze.cn"))
		})

		It("rejects unknown keys", func() {
			_, err := run("get", "invalid_key")
			Expect(err).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			_, err := run("get")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("runs without error when no config exists", func() {
			out, err := run("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("server.listen"))
		})

		It("lists set values with secrets masked", func() {
			_, err := run("set", "upstream.token", "pat_secret1234")
			Expect(err).NotTo(HaveOccurred())
			_, err = run("set", "storage.driver", "redis")
			Expect(err).NotTo(HaveOccurred())

			out, err := run("list")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(`"redis"`))
			Expect(out).NotTo(ContainSubstring("pat_secret1234"))
		})

		It("rejects any arguments", func() {
			_, err := run("list", "extra")
			Expect(err).To(HaveOccurred())
		})
	})
})
