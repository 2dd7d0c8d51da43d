package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/controller"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/source"
)

func TestPrintPools(t *testing.T) {
	var buf bytes.Buffer
	printPools(&buf, source.Pools{
		dns.LineTelecom: {"10.0.0.1", "10.0.0.2"},
		dns.LineMobile:  {"30.0.0.1"},
	})

	out := buf.String()
	for _, want := range []string{"telecom", "CT", "10.0.0.2", "mobile", "CM", "30.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "unicom") {
		t.Errorf("expected no unicom row:\n%s", out)
	}
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	snap := controller.Snapshot{
		dns.LineTelecom: {{ID: "17", Type: "A", Value: "1.1.1.1", TTL: 600}},
	}
	printSnapshot(&buf, "www.example.com.", []dns.Line{dns.LineTelecom, dns.LineUnicom}, snap)

	out := buf.String()
	for _, want := range []string{"Records in www.example.com.", "17", "1.1.1.1", "unicom"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintOutcomes(t *testing.T) {
	var buf bytes.Buffer
	printOutcomes(&buf, []controller.Outcome{
		{Kind: controller.ActionDelete, Target: controller.Target{Line: dns.LineTelecom}, RecordID: "1", Value: "1.1.1.1"},
		{Kind: controller.ActionDelete, Target: controller.Target{Line: dns.LineTelecom}, RecordID: "2", Err: errors.New("quota exceeded")},
	})

	out := buf.String()
	if !strings.Contains(out, "ok") || !strings.Contains(out, "quota exceeded") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := newCmdVersion()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "yk-cdn-dns version dev\n" {
		t.Errorf("unexpected version output %q", got)
	}
}
