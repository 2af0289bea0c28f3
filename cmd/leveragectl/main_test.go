package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"leverageloop/config"
	"leverageloop/native/leverage"
)

func initRecord(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leverage.toml")
	var out bytes.Buffer
	if err := runInit([]string{"--config", path}, &out); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out.String(), config.Default().Contracts.Leverage) {
		t.Fatalf("expected controller address in output: %s", out.String())
	}
	return path
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := initRecord(t)
	if err := runInit([]string{"--config", path}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected second init to fail")
	}
	if err := runInit([]string{"--config", path, "--force"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}

func TestSimulatePrintsTrace(t *testing.T) {
	path := initRecord(t)
	var out bytes.Buffer
	if err := runSimulate([]string{"--config", path, "--memory", "--amount", "1000"}, &out); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"borrow_stable",
		"Steps:           deposit -> deposit_collateral -> borrow -> swap",
		"Loops:           1 (redeposits 0)",
		"Stop reason:     below stop threshold",
		"Collateral:      950",
		"Loan:            33250",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestSimulateJSON(t *testing.T) {
	path := initRecord(t)
	var out bytes.Buffer
	if err := runSimulate([]string{"--config", path, "--memory", "--amount", "10000000", "--json"}, &out); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var res struct {
		Loops      int    `json:"loops"`
		Redeposits int    `json:"redeposits"`
		Phase      string `json:"phase"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Loops != 5 || res.Redeposits != 4 {
		t.Fatalf("unexpected loop summary %+v", res)
	}
}

func TestEstimateBond(t *testing.T) {
	path := initRecord(t)
	var out bytes.Buffer
	if err := runEstimateBond([]string{"--config", path, "--memory", "--amount", "1000"}, &out); err != nil {
		t.Fatalf("estimate-bond: %v", err)
	}
	var res leverage.EstimateBondResponse
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Bonded == nil || res.Bonded.Uint64() != 950 {
		t.Fatalf("expected 950 bonded, got %v", res.Bonded)
	}
	if err := runEstimateBond([]string{"--config", path, "--memory"}, &out); err == nil {
		t.Fatalf("expected missing amount to fail")
	}
}

func TestPossibleBorrowDefaultsToController(t *testing.T) {
	path := initRecord(t)
	var out bytes.Buffer
	if err := runPossibleBorrow([]string{"--config", path, "--memory"}, &out); err != nil {
		t.Fatalf("possible-borrow: %v", err)
	}
	var res leverage.PossibleBorrowResponse
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.BorrowAmount == nil || !res.BorrowAmount.IsZero() {
		t.Fatalf("fresh controller must have no capacity, got %+v", res)
	}
	if err := runPossibleBorrow([]string{"--config", path, "--memory", "--address", "bogus"}, &out); err == nil {
		t.Fatalf("expected invalid address to fail")
	}
}

func TestPauseBlocksSimulation(t *testing.T) {
	path := initRecord(t)
	if err := runPause([]string{"--config", path}, &bytes.Buffer{}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Pauses.Leverage {
		t.Fatalf("expected leverage pause in record")
	}
	if err := runSimulate([]string{"--config", path, "--memory", "--amount", "1000"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected paused simulation to fail")
	}
	if err := runPause([]string{"--config", path, "--resume"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := runSimulate([]string{"--config", path, "--memory", "--amount", "1000"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("simulate after resume: %v", err)
	}
}
