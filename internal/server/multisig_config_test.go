package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

func TestParseMultisigConfigYAML(t *testing.T) {
	c, err := parseMultisigConfigYAML([]byte(`
version: 1
board_id: b1
roster_authority: "0xA1"
targets:
  - id: "0xF1"
    endpoint: " http://127.0.0.1:9090/x "
    timeout: 2s
  - id: "0xF2"
    endpoint: http://127.0.0.1:9090/y
target_policy: known_target
limits:
  max_description_len: 10
  max_payload_bytes: 20
`))
	if err != nil {
		t.Fatal(err)
	}
	if c.BoardID != "b1" || c.RosterAuthority != "0xA1" || c.TargetPolicy != "known_target" {
		t.Fatalf("config=%+v", c)
	}
	if c.Page.MaxLimit != defaultMaxPageLimit {
		t.Fatalf("max_limit=%d", c.Page.MaxLimit)
	}
	ids := c.targetIDs()
	if len(ids) != 2 || ids[0] != "0xf1" || ids[1] != "0xf2" {
		t.Fatalf("ids=%v", ids)
	}
	inv := c.httpInvoker()
	ep, ok := inv.Endpoints[types.Identity("0xf1")]
	if !ok || ep.URL != "http://127.0.0.1:9090/x" || ep.Timeout != 2*time.Second {
		t.Fatalf("endpoint=%+v ok=%v", ep, ok)
	}
	if inv.Endpoints[types.Identity("0xf2")].Timeout != 0 {
		t.Fatal("expected default timeout")
	}
	if l := c.limits(); l.MaxDescriptionLen != 10 || l.MaxPayloadBytes != 20 {
		t.Fatalf("limits=%+v", l)
	}
}

func TestParseMultisigConfigYAML_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{name: "yaml", yaml: "version: [", want: ""},
		{name: "version", yaml: "version: 2", want: "unsupported version"},
		{name: "negative limit", yaml: "version: 1\npage:\n  max_limit: -1", want: "must not be negative"},
		{name: "zero target", yaml: "version: 1\ntargets:\n  - id: \"0x00\"\n    endpoint: http://x", want: "id is required"},
		{name: "duplicate target", yaml: "version: 1\ntargets:\n  - id: \"0xF1\"\n    endpoint: http://x\n  - id: \"0xf1\"\n    endpoint: http://y", want: "duplicate id"},
		{name: "missing endpoint", yaml: "version: 1\ntargets:\n  - id: \"0xF1\"", want: "endpoint is required"},
		{name: "bad timeout", yaml: "version: 1\ntargets:\n  - id: \"0xF1\"\n    endpoint: http://x\n    timeout: soon", want: "targets[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseMultisigConfigYAML([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want %q", err, tc.want)
			}
		})
	}
}

func TestMultisigConfigFromEnv_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multisig.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nboard_id: file\nroster_authority: \"0xa1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MULTISIG_CONFIG_PATH", path)
	t.Setenv("MULTISIG_ROSTER_AUTHORITY", "0xa2")
	t.Setenv("MULTISIG_BOARD_ID", "env")

	c, err := multisigConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.RosterAuthority != "0xa2" || c.BoardID != "env" {
		t.Fatalf("config=%+v", c)
	}
}

func TestMultisigConfigFromEnv_RepoDefault(t *testing.T) {
	t.Setenv("MULTISIG_CONFIG_PATH", "")
	t.Setenv("MULTISIG_ROSTER_AUTHORITY", "")
	t.Setenv("MULTISIG_BOARD_ID", "")

	c, err := multisigConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if types.NormalizeIdentity(c.RosterAuthority).IsZero() {
		t.Fatal("repo config must name a roster authority")
	}
}

func TestMultisigConfigFromEnv_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MULTISIG_CONFIG_PATH", "")

	if _, err := multisigConfigFromEnv(); err == nil {
		t.Fatal("expected error")
	}

	t.Setenv("MULTISIG_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := multisigConfigFromEnv(); err == nil {
		t.Fatal("expected error")
	}
}
