package ssh

import (
	"strings"
	"testing"
)

const testKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAID4+94UgSoUPPsm6y8FDQWpHxqF5XEGqOtpuCYOPx+hF ops@example.com"

func TestEffectiveValues(t *testing.T) {
	content := []byte(`# comment
Include /etc/ssh/sshd_config.d/*.conf
PermitRootLogin prohibit-password
PermitRootLogin yes
PasswordAuthentication=no
Match User backup
	PasswordAuthentication yes
`)

	values := EffectiveValues(content)
	if got := values["permitrootlogin"]; got != "prohibit-password" {
		t.Errorf("PermitRootLogin = %q, want first value", got)
	}
	if got := values["passwordauthentication"]; got != "no" {
		t.Errorf("PasswordAuthentication = %q, want no (Match section ignored)", got)
	}
	if _, ok := values["match"]; ok {
		t.Error("Match should not be recorded as a directive")
	}
}

func TestSplitDirective(t *testing.T) {
	tests := []struct {
		line    string
		keyword string
		value   string
		ok      bool
	}{
		{line: "PermitRootLogin no", keyword: "PermitRootLogin", value: "no", ok: true},
		{line: "  AllowUsers  alice bob ", keyword: "AllowUsers", value: "alice bob", ok: true},
		{line: "Port=2222", keyword: "Port", value: "2222", ok: true},
		{line: "Port = 2222", keyword: "Port", value: "2222", ok: true},
		{line: "# PermitRootLogin yes", ok: false},
		{line: "   ", ok: false},
	}

	for _, tt := range tests {
		keyword, value, ok := splitDirective(tt.line)
		if ok != tt.ok || keyword != tt.keyword || value != tt.value {
			t.Errorf("splitDirective(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.line, keyword, value, ok, tt.keyword, tt.value, tt.ok)
		}
	}
}

func TestHarden(t *testing.T) {
	directives := HardeningDirectives("deploy")
	original := []byte(`Include /etc/ssh/sshd_config.d/*.conf
PermitRootLogin yes
X11Forwarding yes
Match User backup
	PasswordAuthentication yes
`)

	if Satisfied(original, directives) {
		t.Fatal("original config should not satisfy the hardening directives")
	}

	hardened := Harden(original, directives)
	if !Satisfied(hardened, directives) {
		t.Fatalf("hardened config does not satisfy directives:\n%s", hardened)
	}

	text := string(hardened)
	if !strings.HasPrefix(text, blockStart+"\n") {
		t.Errorf("managed block should lead the file:\n%s", text)
	}
	if !strings.Contains(text, "# PermitRootLogin yes # disabled by vpsctl") {
		t.Errorf("global PermitRootLogin should be commented out:\n%s", text)
	}
	if !strings.Contains(text, "\tPasswordAuthentication yes\n") {
		t.Errorf("Match section should be left untouched:\n%s", text)
	}
	if !strings.Contains(text, "X11Forwarding yes") {
		t.Errorf("unmanaged directives should be kept:\n%s", text)
	}

	again := Harden(hardened, directives)
	if string(again) != text {
		t.Errorf("Harden is not stable on its own output:\nfirst:\n%s\nsecond:\n%s", text, again)
	}
	if n := strings.Count(string(again), blockStart); n != 1 {
		t.Errorf("managed block appears %d times, want 1", n)
	}
}

func TestParseAuthorizedKeys(t *testing.T) {
	data := []byte("# keys\n\n" + testKey + "\n")
	keys, err := ParseAuthorizedKeys(data)
	if err != nil {
		t.Fatalf("ParseAuthorizedKeys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	if keys[0].Type() != "ssh-ed25519" {
		t.Errorf("key type = %q, want ssh-ed25519", keys[0].Type())
	}

	fingerprints := Fingerprints(keys)
	if len(fingerprints) != 1 || !strings.HasPrefix(fingerprints[0], "SHA256:") {
		t.Errorf("Fingerprints() = %v", fingerprints)
	}

	keys, err = ParseAuthorizedKeys([]byte("# nothing here\n"))
	if err != nil || len(keys) != 0 {
		t.Errorf("comment-only file: keys=%d err=%v, want 0 and nil", len(keys), err)
	}

	_, err = ParseAuthorizedKeys([]byte(testKey + "\nssh-rsa not-base64\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("malformed key error = %v, want line 2", err)
	}
}
